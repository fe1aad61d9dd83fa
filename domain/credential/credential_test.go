package credential

import (
	"strings"
	"testing"
)

func TestParseBearer(t *testing.T) {
	tests := []struct {
		name   string
		header string
		want   string
		wantOK bool
	}{
		{"valid", "Bearer sk_test_abc", "sk_test_abc", true},
		{"empty header", "", "", false},
		{"wrong scheme", "Basic sk_test_abc", "", false},
		{"scheme only", "Bearer ", "", false},
		{"lowercase scheme", "bearer sk_test_abc", "", false},
		{"trailing spaces", "Bearer sk_test_abc  ", "sk_test_abc", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseBearer(tt.header)
			if ok != tt.wantOK {
				t.Fatalf("ParseBearer(%q) ok = %v, want %v", tt.header, ok, tt.wantOK)
			}
			if got != tt.want {
				t.Errorf("ParseBearer(%q) = %q, want %q", tt.header, got, tt.want)
			}
		})
	}
}

func TestParseFamily(t *testing.T) {
	tests := []struct {
		raw      string
		wantType KeyType
		wantEnv  Environment
		wantOK   bool
	}{
		{"pk_test_" + strings.Repeat("a", 64), TypePublishable, EnvTest, true},
		{"pk_live_" + strings.Repeat("a", 64), TypePublishable, EnvLive, true},
		{"sk_test_" + strings.Repeat("a", 64), TypeSecret, EnvTest, true},
		{"sk_live_" + strings.Repeat("a", 64), TypeSecret, EnvLive, true},
		{"ak_test_" + strings.Repeat("a", 64), "", "", false},
		{"sk_prod_" + strings.Repeat("a", 64), "", "", false},
		{"garbage", "", "", false},
		{"", "", "", false},
	}

	for _, tt := range tests {
		gotType, gotEnv, ok := ParseFamily(tt.raw)
		if ok != tt.wantOK {
			t.Errorf("ParseFamily(%q) ok = %v, want %v", tt.raw, ok, tt.wantOK)
			continue
		}
		if gotType != tt.wantType || gotEnv != tt.wantEnv {
			t.Errorf("ParseFamily(%q) = (%q, %q), want (%q, %q)",
				tt.raw, gotType, gotEnv, tt.wantType, tt.wantEnv)
		}
	}
}

func TestLookupPrefix(t *testing.T) {
	raw := "sk_live_" + strings.Repeat("f", 64)

	prefix, ok := LookupPrefix(raw)
	if !ok {
		t.Fatal("expected valid lookup prefix")
	}
	if len(prefix) != LookupPrefixLen {
		t.Errorf("prefix length = %d, want %d", len(prefix), LookupPrefixLen)
	}
	if prefix != raw[:LookupPrefixLen] {
		t.Errorf("prefix = %q, want %q", prefix, raw[:LookupPrefixLen])
	}

	// Too short to be well formed even with a valid family.
	if _, ok := LookupPrefix("sk_live_short"); ok {
		t.Error("short key should have no lookup prefix")
	}

	// Unknown family.
	if _, ok := LookupPrefix("xx_live_" + strings.Repeat("f", 64)); ok {
		t.Error("unknown family should have no lookup prefix")
	}
}

func TestGenerate(t *testing.T) {
	raw, k := Generate(TypeSecret, EnvLive)

	if !strings.HasPrefix(raw, PrefixSecretLive) {
		t.Errorf("raw key %q missing prefix %q", raw[:12], PrefixSecretLive)
	}
	if len(raw) != MinRawLen {
		t.Errorf("raw key length = %d, want %d", len(raw), MinRawLen)
	}
	if k.Prefix != raw[:LookupPrefixLen] {
		t.Errorf("stored prefix = %q, want %q", k.Prefix, raw[:LookupPrefixLen])
	}
	if !strings.HasPrefix(k.ID, "key_") {
		t.Errorf("key ID = %q, want key_ prefix", k.ID)
	}
	if !k.Active {
		t.Error("generated key should be active")
	}

	// Hashing is the caller's hasher's job; the record must come back
	// without one so the configured cost always applies.
	if k.Hash != nil {
		t.Error("generated key carries a hash")
	}
}

func TestGenerateUnique(t *testing.T) {
	raw1, _ := Generate(TypeSecret, EnvTest)
	raw2, _ := Generate(TypeSecret, EnvTest)
	if raw1 == raw2 {
		t.Error("two generated keys are identical")
	}
}

func TestHasPermission(t *testing.T) {
	tests := []struct {
		name     string
		perms    []string
		required string
		want     bool
	}{
		{"empty grants all", nil, "trades:write", true},
		{"exact match", []string{"trades:read", "trades:write"}, "trades:write", true},
		{"wildcard", []string{"*"}, "anything", true},
		{"missing", []string{"trades:read"}, "trades:write", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			k := Key{Permissions: tt.perms}
			if got := k.HasPermission(tt.required); got != tt.want {
				t.Errorf("HasPermission(%q) = %v, want %v", tt.required, got, tt.want)
			}
		})
	}
}
