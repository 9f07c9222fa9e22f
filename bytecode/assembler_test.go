package bytecode

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pilacorp/go-batchevm-sdk/errs"
)

var token = "0x" + strings.Repeat("22", 20)

func TestAssemble(t *testing.T) {
	tests := []struct {
		name      string
		addresses []string
		wantCount int
		wantErr   error
	}{
		{
			name:      "single address",
			addresses: []string{"0x" + strings.Repeat("11", 20)},
			wantCount: 1,
		},
		{
			name: "mixed case is lowercased",
			addresses: []string{
				"0xAbCdEf0123456789aBcDeF0123456789AbCdEf01",
				"0x70997970C51812dc3A010C7d01b50e0d17dc79C8",
			},
			wantCount: 2,
		},
		{
			name: "invalid entries are dropped",
			addresses: []string{
				"0x" + strings.Repeat("11", 20),
				"0x1234",
				strings.Repeat("11", 20),
				"0x" + strings.Repeat("zz", 20),
				"0x" + strings.Repeat("33", 20),
			},
			wantCount: 2,
		},
		{
			name:      "empty list",
			addresses: nil,
			wantErr:   errs.ErrEmptyAddressSet,
		},
		{
			name:      "only invalid entries",
			addresses: []string{"0x12", "hello"},
			wantErr:   errs.ErrEmptyAddressSet,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := Assemble(tt.addresses, token)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.Empty(t, out)
				return
			}
			require.NoError(t, err)

			assert.True(t, strings.HasPrefix(out, "0x"))
			assert.Zero(t, len(out)%2)
			assert.Equal(t, len(out), Size(out)*2+2)

			valid := FormatAddresses(tt.addresses)
			require.Len(t, valid, tt.wantCount)
			want := ""
			for _, a := range valid {
				want += a[2:]
			}
			segment, err := DataSegment(out, tt.wantCount)
			require.NoError(t, err)
			assert.Equal(t, want, segment)
			assert.Equal(t, "fe", out[len(out)-len(want)-2:len(out)-len(want)])

			// constructor (21) + runtime (339) + separator (1) + table
			assert.Equal(t, 361+20*tt.wantCount, Size(out))
		})
	}
}

func TestAssembleGolden(t *testing.T) {
	out, err := Assemble([]string{"0x" + strings.Repeat("11", 20)}, token)
	require.NoError(t, err)

	assert.Equal(t, strings.Repeat("11", 20), out[len(out)-40:])
	assert.True(t, strings.HasPrefix(out, "0x6014610167806100155f393360601b8152015ff3fe60148038035f395f"))
	assert.Contains(t, out, "601461001404916323b872dd")
	assert.Contains(t, out, "73"+strings.Repeat("22", 20)+"90565b")
	assert.Contains(t, out, "6352850170")
	assert.Contains(t, out, "63165b478b")
	assert.Equal(t, 381, Size(out))
}

func TestAssembleDeterministic(t *testing.T) {
	addrs := []string{
		"0x70997970C51812dc3A010C7d01b50e0d17dc79C8",
		"0x2036C6CD85692F0Fb2C26E6c6B2ECed9e4478Dfd",
		"0xAC4885A9d09229DD2eA233Cd385a3171E0907906",
	}
	first, err := Assemble(addrs, token)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := Assemble(addrs, token)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}

	reordered, err := Assemble([]string{addrs[2], addrs[1], addrs[0]}, token)
	require.NoError(t, err)
	assert.NotEqual(t, first, reordered, "table order is significant")
}

func TestAssembleSizeImmediates(t *testing.T) {
	addrs := make([]string, 300)
	for i := range addrs {
		addrs[i] = "0x" + strings.Repeat("ab", 20)
	}
	out, err := Assemble(addrs, token)
	require.NoError(t, err)

	// 300 * 20 = 6000 = 0x1770, runtime = 339 + 6000 = 6339 = 0x18c3
	assert.True(t, strings.HasPrefix(out, "0x60146118c3"))
	assert.Contains(t, out, "601461177004916323b872dd")
}

func TestAssembleMaxAddresses(t *testing.T) {
	assert.Equal(t, 3259, MaxAddresses)

	addrs := make([]string, MaxAddresses)
	for i := range addrs {
		addrs[i] = "0x" + strings.Repeat("cd", 20)
	}
	out, err := Assemble(addrs, token)
	require.NoError(t, err)
	// constructor keeps its fixed 4-digit immediate
	assert.Equal(t, "601461", out[2:8])
	assert.Equal(t, "806100155f", out[12:22])

	require.NoError(t, CheckCount(MaxAddresses))
	require.ErrorIs(t, CheckCount(MaxAddresses+1), errs.ErrTooManyAddresses)
}

func TestAssembleInvalidToken(t *testing.T) {
	_, err := Assemble([]string{"0x" + strings.Repeat("11", 20)}, "0x1234")
	require.ErrorIs(t, err, errs.ErrInvalidAddress)
}

func TestSize(t *testing.T) {
	assert.Equal(t, 2, Size("0xabcd"))
	assert.Equal(t, 2, Size("abcd"))
	assert.Equal(t, 0, Size("0x"))
}

func TestIsValidAddress(t *testing.T) {
	assert.True(t, IsValidAddress("0x70997970C51812dc3A010C7d01b50e0d17dc79C8"))
	assert.False(t, IsValidAddress("70997970C51812dc3A010C7d01b50e0d17dc79C8"))
	assert.False(t, IsValidAddress("0x70997970C51812dc3A010C7d01b50e0d17dc79C"))
	assert.False(t, IsValidAddress("0X70997970C51812dc3A010C7d01b50e0d17dc79C8"))
	assert.False(t, IsValidAddress(""))
}
