package storage

import "testing"

func TestTimelineAdvanceYears(t *testing.T) {
	timeline := Timeline{CampaignID: "camp-1", CurrentYear: 1900}

	if got := timeline.AdvanceYears(3); got != 1903 {
		t.Fatalf("advance returned %d, want 1903", got)
	}
	if timeline.CurrentYear != 1903 {
		t.Fatalf("current year = %d, want 1903", timeline.CurrentYear)
	}

	// Zero and negative spans leave the year alone.
	if got := timeline.AdvanceYears(0); got != 1903 {
		t.Fatalf("zero-year advance returned %d, want 1903", got)
	}
	if got := timeline.AdvanceYears(-2); got != 1903 {
		t.Fatalf("negative advance returned %d, want 1903", got)
	}
}
