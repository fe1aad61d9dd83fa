package account

import "testing"

func TestIsActive(t *testing.T) {
	if !(Account{Status: StatusActive}).IsActive() {
		t.Error("active account should be active")
	}
	if (Account{Status: StatusSuspended}).IsActive() {
		t.Error("suspended account should not be active")
	}
	if (Account{Status: "deleted"}).IsActive() {
		t.Error("unknown status should not be active")
	}
}

func TestQuotaRemaining(t *testing.T) {
	tests := []struct {
		name  string
		quota int64
		used  int64
		want  int64
	}{
		{"untouched", 1000, 0, 1000},
		{"partially used", 1000, 400, 600},
		{"exactly spent", 1000, 1000, 0},
		{"overshoot clamps to zero", 1000, 1005, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := Account{MonthlyQuota: tt.quota, RequestsThisMonth: tt.used}
			if got := a.QuotaRemaining(); got != tt.want {
				t.Errorf("QuotaRemaining() = %d, want %d", got, tt.want)
			}
		})
	}
}
