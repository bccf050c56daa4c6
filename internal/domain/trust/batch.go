package trust

import "fmt"

// CascadeResult reports a re-pricing pass over the vouches one user has given.
type CascadeResult struct {
	VoucherID string   `json:"voucher_id"`
	Tier      Tier     `json:"tier"`
	Checked   int      `json:"checked"`
	Updated   int      `json:"updated"`
	Unchanged int      `json:"unchanged"`
	Rescored  []string `json:"rescored_users,omitempty"`
	Errors    []string `json:"errors"`
}

// ErrorList accumulates per-item failures of a batch without aborting it.
type ErrorList []string

func (l *ErrorList) Add(item string, err error) {
	*l = append(*l, fmt.Sprintf("%s: %v", item, err))
}

func (l ErrorList) Strings() []string {
	if l == nil {
		return []string{}
	}
	return []string(l)
}
