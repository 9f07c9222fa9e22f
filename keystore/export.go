package keystore

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/xeipuuv/gojsonschema"
	"go.uber.org/zap"
	"golang.org/x/crypto/scrypt"

	"github.com/pilacorp/go-batchevm-sdk/errs"
)

const exportTimeLayout = "2006-01-02T15:04:05.000Z07:00"

// exportSchema only pins the envelope; entries are checked one by one so a
// bad entry never rejects the whole file.
const exportSchema = `{
  "type": "object",
  "required": ["addresses"],
  "properties": {
    "addresses": {
      "type": "array",
      "items": {"type": "object"}
    }
  }
}`

// ExportEntry is one account in an export file.
type ExportEntry struct {
	Address    string `json:"address"`
	PrivateKey string `json:"privateKey"`
	Balance    string `json:"balance"`
}

// ExportFile is the address export document.
type ExportFile struct {
	Addresses  []ExportEntry `json:"addresses"`
	ExportTime string        `json:"exportTime"`
	TotalCount int           `json:"totalCount"`
}

// ExportFileName returns the suggested file name for an export taken at now,
// e.g. evm-addresses-2024-01-15-2024-01-15T10-30-45.json.
func ExportFileName(now time.Time) string {
	now = now.UTC()
	return fmt.Sprintf("evm-addresses-%s-%s.json", now.Format("2006-01-02"), now.Format("2006-01-02T15-04-05"))
}

// ExportJSON writes every account, private keys included, as indented JSON.
func (s *Store) ExportJSON(w io.Writer) error {
	doc, err := s.exportFile()
	if err != nil {
		return err
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("failed to write export: %w", err)
	}

	s.logger.Info("private keys exported", zap.String("format", "json"), zap.Int("count", doc.TotalCount))
	return nil
}

func (s *Store) exportFile() (*ExportFile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.addrs) == 0 {
		return nil, fmt.Errorf("nothing to export: %w", errs.ErrEmptyAddressSet)
	}

	doc := &ExportFile{
		Addresses:  make([]ExportEntry, 0, len(s.addrs)),
		ExportTime: s.now().UTC().Format(exportTimeLayout),
		TotalCount: len(s.addrs),
	}
	for _, a := range s.addrs {
		balance := a.Balance
		if balance == "" {
			balance = "0"
		}
		doc.Addresses = append(doc.Addresses, ExportEntry{
			Address:    a.Address,
			PrivateKey: a.Key.reveal(),
			Balance:    balance,
		})
	}
	return doc, nil
}

// ImportJSON reads an export document and appends every entry whose private
// key derives its address. Entries that do not match are skipped.
func (s *Store) ImportJSON(r io.Reader) (int, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return 0, fmt.Errorf("failed to read import: %w", err)
	}
	defer clear(data)

	return s.importDocument(data)
}

func (s *Store) importDocument(data []byte) (int, error) {
	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(exportSchema),
		gojsonschema.NewBytesLoader(data),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to parse import: %w", err)
	}
	if !result.Valid() {
		return 0, fmt.Errorf("import document is invalid: %v", result.Errors())
	}

	var doc struct {
		Addresses []json.RawMessage `json:"addresses"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return 0, fmt.Errorf("failed to parse import: %w", err)
	}

	var imported []*Address
	for _, raw := range doc.Addresses {
		var entry ExportEntry
		if err := json.Unmarshal(raw, &entry); err != nil {
			continue
		}
		if entry.Address == "" || entry.PrivateKey == "" {
			continue
		}
		key, err := ParseSecret(entry.PrivateKey)
		if err != nil {
			continue
		}
		if !strings.EqualFold(key.Address().Hex(), entry.Address) {
			key.Destroy()
			continue
		}

		addr := newAddress(key)
		addr.Balance = entry.Balance
		if addr.Balance == "" {
			addr.Balance = "0"
		}
		imported = append(imported, addr)
	}

	if len(imported) == 0 {
		return 0, errs.ErrNoValidEntries
	}

	s.add(imported)
	s.logger.Info("addresses imported", zap.Int("count", len(imported)), zap.Int("skipped", len(doc.Addresses)-len(imported)))
	return len(imported), nil
}

// scrypt parameters for encrypted exports
const (
	scryptN      = 1 << 15
	scryptR      = 8
	scryptP      = 1
	scryptKeyLen = 32
	saltLen      = 32
	nonceLen     = 12
)

// EncryptedFile is the password-protected wrapper around an ExportFile.
type EncryptedFile struct {
	Salt       string `json:"salt"`
	Nonce      string `json:"nonce"`
	CipherText string `json:"cipherText"`
	TotalCount int    `json:"totalCount"`
}

// ExportEncrypted writes the JSON export sealed with AES-GCM under a key
// derived from password with scrypt. The caller should zero password after use.
func (s *Store) ExportEncrypted(w io.Writer, password []byte) error {
	if len(password) == 0 {
		return fmt.Errorf("password is required")
	}

	doc, err := s.exportFile()
	if err != nil {
		return err
	}
	plaintext, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal export: %w", err)
	}
	defer clear(plaintext)

	salt := make([]byte, saltLen)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return fmt.Errorf("failed to generate salt: %w", err)
	}
	nonce := make([]byte, nonceLen)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return fmt.Errorf("failed to generate nonce: %w", err)
	}

	aead, err := newAEAD(password, salt)
	if err != nil {
		return err
	}
	ciphertext := aead.Seal(nil, nonce, plaintext, nil)

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(EncryptedFile{
		Salt:       base64.StdEncoding.EncodeToString(salt),
		Nonce:      base64.StdEncoding.EncodeToString(nonce),
		CipherText: base64.StdEncoding.EncodeToString(ciphertext),
		TotalCount: doc.TotalCount,
	}); err != nil {
		return fmt.Errorf("failed to write export: %w", err)
	}

	s.logger.Info("private keys exported", zap.String("format", "encrypted"), zap.Int("count", doc.TotalCount))
	return nil
}

// ImportEncrypted decrypts a file written by ExportEncrypted and imports it.
func (s *Store) ImportEncrypted(r io.Reader, password []byte) (int, error) {
	var file EncryptedFile
	if err := json.NewDecoder(r).Decode(&file); err != nil {
		return 0, fmt.Errorf("failed to parse encrypted file: %w", err)
	}

	salt, err := base64.StdEncoding.DecodeString(file.Salt)
	if err != nil || len(salt) != saltLen {
		return 0, fmt.Errorf("invalid salt")
	}
	nonce, err := base64.StdEncoding.DecodeString(file.Nonce)
	if err != nil || len(nonce) != nonceLen {
		return 0, fmt.Errorf("invalid nonce")
	}
	ciphertext, err := base64.StdEncoding.DecodeString(file.CipherText)
	if err != nil {
		return 0, fmt.Errorf("invalid ciphertext: %w", err)
	}

	aead, err := newAEAD(password, salt)
	if err != nil {
		return 0, err
	}
	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to decrypt: wrong password or corrupted file")
	}
	defer clear(plaintext)

	return s.importDocument(plaintext)
}

func newAEAD(password, salt []byte) (cipher.AEAD, error) {
	key, err := scrypt.Key(password, salt, scryptN, scryptR, scryptP, scryptKeyLen)
	if err != nil {
		return nil, fmt.Errorf("failed to derive key: %w", err)
	}
	defer clear(key)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return aead, nil
}
