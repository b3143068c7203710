package enums

// LedgerEntryType labels entries in the append-only vendor ledger trail.
type LedgerEntryType string

const (
	LedgerEntryTypeEarning    LedgerEntryType = "earning"
	LedgerEntryTypeWithdrawal LedgerEntryType = "withdrawal"
)

// String implements fmt.Stringer.
func (t LedgerEntryType) String() string {
	return string(t)
}

// IsValid reports whether the value is a known LedgerEntryType.
func (t LedgerEntryType) IsValid() bool {
	switch t {
	case LedgerEntryTypeEarning, LedgerEntryTypeWithdrawal:
		return true
	default:
		return false
	}
}
