package llm

import "strings"

// buildPrompt renders the fixed structuring instruction followed by the
// chunk text. The schema and rules never vary between calls; only the
// statement text does.
func buildPrompt(chunkText string) string {
	var b strings.Builder

	b.WriteString("You are a financial statement parser for Brazilian bank statements (extratos bancários) of any bank and layout.\n\n")
	b.WriteString("Task:\n")
	b.WriteString("- Parse ALL transactions in the statement text below.\n")
	b.WriteString("- Output STRICT JSON only (no comments, no trailing commas, no extra text).\n")
	b.WriteString("- Output a JSON array of objects.\n\n")

	b.WriteString("Each object must have these fields:\n")
	b.WriteString("- \"date\": string, ISO format \"YYYY-MM-DD\"\n")
	b.WriteString("- \"description\": string, the transaction text as printed (histórico)\n")
	b.WriteString("- \"document_no\": string or null, cheque/document number when printed\n")
	b.WriteString("- \"amount\": number (positive for money IN, negative for money OUT)\n")
	b.WriteString("- \"balance_after\": number or null, the running balance after this transaction\n")
	b.WriteString("- \"counterparty\": string or null, transfer origin or destination when printed\n")
	b.WriteString("- \"bank\": string or null, the issuing institution when the statement names it\n")
	b.WriteString("- \"category\": string, one of the predefined categories below\n\n")

	b.WriteString("Use ONLY the following categories:\n")
	for _, c := range Categories {
		b.WriteString("  - " + c + "\n")
	}
	b.WriteString("\n")

	b.WriteString("Rules:\n")
	b.WriteString("- Dates printed as DD/MM/YYYY or DD/MM are Brazilian; convert to \"YYYY-MM-DD\", inferring the year from context when omitted.\n")
	b.WriteString("- Amounts printed as \"1.234,56\" use Brazilian separators; output plain numbers like 1234.56.\n")
	b.WriteString("- A \"D\" suffix or debit column means money OUT: the amount must be negative. \"C\" means money IN: positive.\n")
	b.WriteString("- If the running balance is not printed for a transaction, set \"balance_after\" to null.\n")
	b.WriteString("- Lines like \"===== PAGE 3 =====\" are page separators, never transaction data.\n")
	b.WriteString("- Skip balance-carried-forward lines (\"SALDO ANTERIOR\", \"SALDO DO DIA\"); they are not transactions.\n")
	b.WriteString("- Never invent transactions; only output what the text supports.\n")
	b.WriteString("- If unsure about the category, use \"Other\".\n\n")

	b.WriteString("Return ONLY valid raw JSON.\n")
	b.WriteString("Do NOT wrap the response in code fences.\n")
	b.WriteString("Do NOT use ```json or any Markdown.\n")
	b.WriteString("Output must begin with \"[\" and end with \"]\".\n\n")

	b.WriteString("Statement text:\n")
	b.WriteString(chunkText)

	return b.String()
}
