// internal/app/features/auditlog/types.go
package auditlog

import (
	"github.com/dalemusser/memberhub/internal/app/store/audit"
	"github.com/dalemusser/memberhub/internal/app/system/paging"
)

// listResponse is the JSON body of GET /audit.
type listResponse struct {
	Events []audit.Event `json:"events"`
	Total  int64         `json:"total"`
	Range  paging.Range  `json:"range"`
	paging.Result
}

var categories = map[string]bool{
	audit.CategoryPayment:    true,
	audit.CategoryMembership: true,
	audit.CategorySecurity:   true,
	audit.CategoryAdmin:      true,
}
