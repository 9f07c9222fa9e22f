package bytecode

// Selectors dispatched by RuntimeTemplateV1.
const (
	SelectorTransfer = "52850170"
	SelectorReceive  = "165b478b"
)

// Template placeholders.
const (
	placeholderDataSize = "{{DATA_SIZE}}"
	placeholderToken    = "{{TOKEN}}"
	placeholderRuntime  = "{{RUNTIME_SIZE}}"
)

// RuntimeTemplateV1 is the deployed program that walks the embedded address
// table. It is a versioned constant: the stride arithmetic is bound to
// DATA_SIZE and must not be edited without redeploying every consumer.
const RuntimeTemplateV1 = "60148038035f395f5160601c330361011e575f3560e01c80635285017014610091576316" +
	"5b478b1461002e575b005b600435602435601461" + placeholderDataSize + "04916323b872dd60e01b5f525f60" +
	"04526024526044526101545f905b8282106100645750505061002c565b806014809260103901905f80606481" +
	"8061007c610123565b5af11561008c5760010190610055565b610147565b506044361061011a5760043560" +
	"2435906323b872dd60e01b5f526004525f6024526044526101545f905b66ffffffffffffff82106100d157" +
	"5b505061002c565b806014809260303901906211451460305160601c14610115575f80606481806100f861" +
	"0123565b5af1156101105766ffffffffffffff909190506100bb565b610147565b6100ca565b5f80fd5b61" +
	"013b565b73" + placeholderToken + "90565b600160f81b5f5260015ffd5b600260f81b5f5260015ffd"

// ConstructorTemplateV1 copies RUNTIME_SIZE bytes of code following it into
// memory and returns them.
const ConstructorTemplateV1 = "601461" + placeholderRuntime + "806100155f393360601b8152015ff3fe"

// separator is the invalid opcode between executable code and the data segment.
const separator = "fe"
