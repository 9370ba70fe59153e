package ofx

import (
	"strings"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
)

func sampleOFX() string {
	return "OFXHEADER: 100\r\n" +
		"DATA: OFXSGML\r\n" +
		"ENCODING: UTF - 8\r\n" +
		"\r\n" +
		"<OFX>\n" +
		"<SIGNONMSGSRSV1>\n" +
		"<SONRS>\n" +
		"<DTSERVER>15/01/2024 10:30:00\n" +
		"<FI>\n" +
		"<ORG>Banco Exemplo\n" +
		"</FI>\n" +
		"</SONRS>\n" +
		"</SIGNONMSGSRSV1>\n" +
		"<BANKMSGSRSV1>\n" +
		"<STMTTRNRS>\n" +
		"<STMTRS>\n" +
		"<BANKACCTFROM>\n" +
		"<BANKID>0341\n" +
		"<ACCTID>12345-6\n" +
		"</BANKACCTFROM>\n" +
		"<BANKTRANLIST>\n" +
		"<STMTTRN>\n" +
		"<TRNTYPE>OTHER\n" +
		"<DTPOSTED>20240110\n" +
		"<TRNAMT>\n" +
		"<FITID>\n" +
		"<MEMO>Saldo anterior\n" +
		"</STMTTRN>\n" +
		"<STMTTRN>\n" +
		"<TRNTYPE>DEBIT\n" +
		"<DTPOSTED>15/01/2024 10:30:00\n" +
		"<TRNAMT>9.500.00*\n" +
		"<FITID>20240115001\n" +
		"<CHECKNUM>000123\n" +
		"<MEMO>PAGAMENTO FORNECEDOR\n" +
		"</STMTTRN>\n" +
		"<STMTTRN>\n" +
		"<TRNTYPE>CREDIT\n" +
		"<DTPOSTED>20240116120000[-3:BRT]\n" +
		"<TRNAMT>1.234,56\n" +
		"<FITID>20240116001\n" +
		"<NAME>EMPRESA XYZ LTDA\n" +
		"</STMTTRN>\n" +
		"</BANKTRANLIST>\n" +
		"</STMTRS>\n" +
		"</STMTTRNRS>\n" +
		"</BANKMSGSRSV1>\n" +
		"</OFX>\n"
}

func TestParse_MalformedBrazilianExport(t *testing.T) {
	st, err := Parse([]byte(sampleOFX()))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	if st.BankID != "0341" {
		t.Errorf("BankID = %q, want 0341", st.BankID)
	}
	if st.Bank != "Itaú Unibanco S.A." {
		t.Errorf("Bank = %q; BANKID must win over ORG", st.Bank)
	}
	if len(st.Records) != 2 {
		t.Fatalf("Expected 2 records (placeholder dropped), got %d", len(st.Records))
	}

	debit := st.Records[0]
	if debit.Date != (civil.Date{Year: 2024, Month: time.January, Day: 15}) {
		t.Errorf("debit date = %s", debit.Date)
	}
	if !debit.Amount.Equal(decimal.RequireFromString("-9500.00")) {
		t.Errorf("debit amount = %s, want -9500.00", debit.Amount)
	}
	if debit.Description != "PAGAMENTO FORNECEDOR" {
		t.Errorf("debit description = %q", debit.Description)
	}
	if debit.DocumentNo != "000123" {
		t.Errorf("debit document = %q", debit.DocumentNo)
	}
	if debit.Bank != "Itaú Unibanco S.A." {
		t.Errorf("debit bank = %q", debit.Bank)
	}

	credit := st.Records[1]
	if credit.Date != (civil.Date{Year: 2024, Month: time.January, Day: 16}) {
		t.Errorf("credit date = %s", credit.Date)
	}
	if !credit.Amount.Equal(decimal.RequireFromString("1234.56")) {
		t.Errorf("credit amount = %s, want 1234.56", credit.Amount)
	}
	if credit.Description != "EMPRESA XYZ LTDA" {
		t.Errorf("credit description should fall back to NAME, got %q", credit.Description)
	}
	if credit.Counterparty != "EMPRESA XYZ LTDA" {
		t.Errorf("credit counterparty = %q", credit.Counterparty)
	}
}

func wrapOFX(bankacct, blocks string) string {
	return "<OFX>\n" + bankacct + "<BANKTRANLIST>\n" + blocks + "</BANKTRANLIST>\n</OFX>\n"
}

func TestParse_BankResolution(t *testing.T) {
	block := "<STMTTRN>\n<TRNTYPE>DEBIT\n<DTPOSTED>20240115\n<TRNAMT>-10.00\n<FITID>x1\n<MEMO>COMPRA\n</STMTTRN>\n"

	tests := []struct {
		name     string
		bankacct string
		want     string
	}{
		{"unknown bankid falls back to org", "<ORG>Banco Exemplo\n<BANKID>999\n", "Banco Exemplo"},
		{"no bankid uses org", "<ORG>Banco Exemplo\n", "Banco Exemplo"},
		{"nothing identifies the bank", "", UnknownBank},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st, err := Parse([]byte(wrapOFX(tt.bankacct, block)))
			if err != nil {
				t.Fatalf("Parse failed: %v", err)
			}
			if st.Bank != tt.want {
				t.Errorf("Bank = %q, want %q", st.Bank, tt.want)
			}
		})
	}
}

func TestParse_Latin1Fallback(t *testing.T) {
	// 0xD4 is Ô in ISO 8859-1 and invalid as a lone UTF-8 byte.
	raw := wrapOFX("<BANKID>104\n",
		"<STMTTRN>\n<TRNTYPE>DEBIT\n<DTPOSTED>20240115\n<TRNAMT>-50.00\n<FITID>x1\n<MEMO>SAQUE ELETR\xD4NICO\n</STMTTRN>\n")

	st, err := Parse([]byte(raw))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(st.Records) != 1 {
		t.Fatalf("Expected 1 record, got %d", len(st.Records))
	}
	if st.Records[0].Description != "SAQUE ELETRÔNICO" {
		t.Errorf("Description = %q, want SAQUE ELETRÔNICO", st.Records[0].Description)
	}
	if st.Bank != "Caixa Econômica Federal" {
		t.Errorf("Bank = %q", st.Bank)
	}
}

func TestParse_TrnTypeFixesSign(t *testing.T) {
	blocks := "<STMTTRN>\n<TRNTYPE>DEBIT\n<DTPOSTED>20240115\n<TRNAMT>10.00\n<FITID>x1\n<MEMO>A\n</STMTTRN>\n" +
		"<STMTTRN>\n<TRNTYPE>CREDIT\n<DTPOSTED>20240115\n<TRNAMT>-20.00\n<FITID>x2\n<MEMO>B\n</STMTTRN>\n" +
		"<STMTTRN>\n<TRNTYPE>XFER\n<DTPOSTED>20240115\n<TRNAMT>-30.00\n<FITID>x3\n<MEMO>C\n</STMTTRN>\n"

	st, err := Parse([]byte(wrapOFX("", blocks)))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(st.Records) != 3 {
		t.Fatalf("Expected 3 records, got %d", len(st.Records))
	}
	if !st.Records[0].Amount.Equal(decimal.RequireFromString("-10")) {
		t.Errorf("DEBIT with positive TRNAMT = %s, want -10", st.Records[0].Amount)
	}
	if !st.Records[1].Amount.Equal(decimal.RequireFromString("20")) {
		t.Errorf("CREDIT with negative TRNAMT = %s, want 20", st.Records[1].Amount)
	}
	if !st.Records[2].Amount.Equal(decimal.RequireFromString("-30")) {
		t.Errorf("XFER keeps the TRNAMT sign, got %s", st.Records[2].Amount)
	}
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"not ofx at all", "hello world", "no <OFX> element"},
		{
			"unreadable amount",
			wrapOFX("", "<STMTTRN>\n<TRNTYPE>DEBIT\n<DTPOSTED>20240115\n<TRNAMT>dez reais\n<FITID>x1\n</STMTTRN>\n"),
			"invalid TRNAMT",
		},
		{
			"unreadable date",
			wrapOFX("", "<STMTTRN>\n<TRNTYPE>DEBIT\n<DTPOSTED>0000\n<TRNAMT>-10.00\n<FITID>x1\n</STMTTRN>\n"),
			"invalid DTPOSTED",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.in))
			if err == nil {
				t.Fatal("Expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}
