package task

import "testing"

func TestConsumeLineComputesPercent(t *testing.T) {
	p := &Progress{}
	p.ConsumeLine("[dl] 12.3 1000 250")
	got := p.Snapshot()
	if got.BytesEstimate != 1000 || got.BytesDownloaded != 250 {
		t.Fatalf("unexpected snapshot: %+v", got)
	}
	if got.Percent != 25 {
		t.Fatalf("expected 25%%, got %d", got.Percent)
	}
}

func TestConsumeLineIgnoresNonProgressLines(t *testing.T) {
	p := &Progress{}
	p.ConsumeLine("[info] downloading video")
	got := p.Snapshot()
	if got.Percent != 0 || got.BytesEstimate != 0 {
		t.Fatalf("expected no change, got %+v", got)
	}
}

func TestConsumeLineIgnoresWrongFieldCount(t *testing.T) {
	p := &Progress{}
	p.ConsumeLine("[dl] only one")
	got := p.Snapshot()
	if got.Percent != 0 {
		t.Fatalf("expected no change for a line with the wrong field count, got %+v", got)
	}
}
