package reconcile

import (
	"strings"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"

	"github.com/gsoares/extratorio/internal/domain"
)

func date(y int, m time.Month, d int) civil.Date {
	return civil.Date{Year: y, Month: m, Day: d}
}

func rec(chunk int, dt civil.Date, desc, amount string) domain.TransactionRecord {
	return domain.TransactionRecord{
		Date:        dt,
		Description: desc,
		Amount:      decimal.RequireFromString(amount),
		Chunk:       chunk,
	}
}

func batch(chunk int, records ...domain.TransactionRecord) domain.RecordBatch {
	return domain.RecordBatch{Chunk: chunk, Records: records, Attempts: 1}
}

func TestMerge_Totals(t *testing.T) {
	batches := []domain.RecordBatch{
		batch(0,
			rec(0, date(2024, time.February, 1), "Grocery Store", "-45.20"),
			rec(0, date(2024, time.February, 2), "Salary", "2000.00"),
		),
	}

	res := Merge(batches, nil, decimal.Zero)

	if len(res.Records) != 2 {
		t.Fatalf("Expected 2 records, got %d", len(res.Records))
	}
	if !res.Totals.Debits.Equal(decimal.RequireFromString("45.20")) {
		t.Errorf("Debits = %s, want 45.20", res.Totals.Debits)
	}
	if !res.Totals.Credits.Equal(decimal.RequireFromString("2000")) {
		t.Errorf("Credits = %s, want 2000", res.Totals.Credits)
	}
	if !res.Totals.FinalBalance.Equal(decimal.RequireFromString("1954.80")) {
		t.Errorf("FinalBalance = %s, want 1954.80", res.Totals.FinalBalance)
	}
	if len(res.Warnings) != 0 {
		t.Errorf("unexpected warnings: %v", res.Warnings)
	}
	if res.Partial() {
		t.Error("result with no failures should not be partial")
	}
}

func TestMerge_FinalBalanceFromLastReported(t *testing.T) {
	bal := decimal.RequireFromString("1234.56")
	r1 := rec(0, date(2024, time.January, 2), "PIX RECEBIDO", "100.00")
	r1.BalanceAfter = &bal
	r2 := rec(0, date(2024, time.January, 3), "TARIFA PACOTE", "-24.90")

	res := Merge([]domain.RecordBatch{batch(0, r1, r2)}, nil, decimal.Zero)

	if !res.Totals.FinalBalance.Equal(bal) {
		t.Errorf("FinalBalance = %s, want last reported balance %s", res.Totals.FinalBalance, bal)
	}
}

func TestMerge_BoundaryDuplicateDropped(t *testing.T) {
	dup := date(2024, time.March, 10)
	batches := []domain.RecordBatch{
		batch(0,
			rec(0, date(2024, time.March, 9), "COMPRA CARTAO", "-10.00"),
			rec(0, dup, "PAGAMENTO BOLETO", "-300.00"),
		),
		batch(1,
			rec(1, dup, "PAGAMENTO BOLETO", "-300.00"),
			rec(1, date(2024, time.March, 11), "DEPOSITO", "500.00"),
		),
	}

	res := Merge(batches, nil, decimal.Zero)

	if len(res.Records) != 3 {
		t.Fatalf("Expected 3 records after dedupe, got %d", len(res.Records))
	}
	// Keep-first: the surviving copy belongs to the earlier chunk.
	if res.Records[1].Chunk != 0 {
		t.Errorf("surviving duplicate comes from chunk %d, want 0", res.Records[1].Chunk)
	}
	if len(res.Warnings) != 1 {
		t.Fatalf("Expected 1 warning, got %d", len(res.Warnings))
	}
	if res.Warnings[0].Chunk != 1 || !strings.Contains(res.Warnings[0].Message, "duplicate") {
		t.Errorf("warning = %+v", res.Warnings[0])
	}
}

func TestMerge_SameChunkRepeatsKept(t *testing.T) {
	d := date(2024, time.March, 10)
	batches := []domain.RecordBatch{
		batch(0,
			rec(0, d, "CAFE DA ESQUINA", "-7.50"),
			rec(0, d, "CAFE DA ESQUINA", "-7.50"),
		),
	}

	res := Merge(batches, nil, decimal.Zero)

	if len(res.Records) != 2 {
		t.Errorf("identical lines inside one chunk are distinct purchases; got %d records", len(res.Records))
	}
}

func TestMerge_ToleranceWidensAmountMatch(t *testing.T) {
	d := date(2024, time.March, 10)
	batches := []domain.RecordBatch{
		batch(0, rec(0, d, "PAGAMENTO BOLETO", "-300.00")),
		batch(1, rec(1, d, "PAGAMENTO BOLETO", "-300.01")),
	}

	res := Merge(batches, nil, decimal.Zero)
	if len(res.Records) != 2 {
		t.Errorf("zero tolerance must keep near-equal amounts apart; got %d records", len(res.Records))
	}

	res = Merge(batches, nil, decimal.RequireFromString("0.01"))
	if len(res.Records) != 1 {
		t.Errorf("tolerance 0.01 should collapse the pair; got %d records", len(res.Records))
	}
}

func TestMerge_DescriptionMatchIgnoresCaseAndSpacing(t *testing.T) {
	d := date(2024, time.March, 10)
	batches := []domain.RecordBatch{
		batch(0, rec(0, d, "PIX  Recebido   Joao", "-50.00")),
		batch(1, rec(1, d, "pix recebido joao", "-50.00")),
	}

	res := Merge(batches, nil, decimal.Zero)

	if len(res.Records) != 1 {
		t.Errorf("case and spacing differences should not defeat the dedupe; got %d records", len(res.Records))
	}
}

func TestMerge_OrdersByChunkIndex(t *testing.T) {
	batches := []domain.RecordBatch{
		batch(2, rec(2, date(2024, time.January, 5), "C", "1.00")),
		batch(0, rec(0, date(2024, time.January, 1), "A", "1.00")),
		batch(1, rec(1, date(2024, time.January, 3), "B", "1.00")),
	}

	res := Merge(batches, nil, decimal.Zero)

	var got []string
	for _, r := range res.Records {
		got = append(got, r.Description)
	}
	want := []string{"A", "B", "C"}
	if len(got) != len(want) {
		t.Fatalf("Expected %d records, got %v", len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("records out of order: got %v, want %v", got, want)
		}
	}
}

func TestMerge_PropagatesFailuresAndTruncation(t *testing.T) {
	b := batch(0, rec(0, date(2024, time.January, 1), "A", "1.00"))
	b.Truncated = true
	failures := []domain.ChunkFailure{
		{Chunk: 2, Attempts: 4, Reason: "rate limited by model service"},
		{Chunk: 1, Attempts: 4, Reason: "transient model service failure"},
	}

	res := Merge([]domain.RecordBatch{b}, failures, decimal.Zero)

	if !res.Partial() {
		t.Error("result with failed chunks should be partial")
	}
	if len(res.FailedChunks) != 2 || res.FailedChunks[0].Chunk != 1 {
		t.Errorf("failures not ordered by chunk: %+v", res.FailedChunks)
	}
	if len(res.Warnings) != 1 || !strings.Contains(res.Warnings[0].Message, "token limit") {
		t.Errorf("truncated batch should warn, got %+v", res.Warnings)
	}
	if len(res.Records) != 1 {
		t.Errorf("surviving chunk records must be kept; got %d", len(res.Records))
	}
}

func TestMerge_Idempotent(t *testing.T) {
	d := date(2024, time.March, 10)
	batches := []domain.RecordBatch{
		batch(0,
			rec(0, date(2024, time.March, 9), "COMPRA CARTAO", "-10.00"),
			rec(0, d, "PAGAMENTO BOLETO", "-300.00"),
		),
		batch(1,
			rec(1, d, "PAGAMENTO BOLETO", "-300.00"),
			rec(1, date(2024, time.March, 11), "DEPOSITO", "500.00"),
		),
	}

	first := Merge(batches, nil, decimal.Zero)
	again := Merge([]domain.RecordBatch{{Chunk: 0, Records: first.Records}}, nil, decimal.Zero)

	if len(again.Records) != len(first.Records) {
		t.Fatalf("re-merge changed record count: %d -> %d", len(first.Records), len(again.Records))
	}
	if len(again.Warnings) != 0 {
		t.Errorf("re-merge produced warnings: %v", again.Warnings)
	}
	if !again.Totals.Debits.Equal(first.Totals.Debits) ||
		!again.Totals.Credits.Equal(first.Totals.Credits) ||
		!again.Totals.FinalBalance.Equal(first.Totals.FinalBalance) {
		t.Errorf("re-merge changed totals: %+v -> %+v", first.Totals, again.Totals)
	}
}

func TestMerge_NoBatches(t *testing.T) {
	res := Merge(nil, nil, decimal.Zero)

	if len(res.Records) != 0 {
		t.Errorf("Expected no records, got %d", len(res.Records))
	}
	if !res.Totals.FinalBalance.IsZero() {
		t.Errorf("FinalBalance = %s, want 0", res.Totals.FinalBalance)
	}
}
