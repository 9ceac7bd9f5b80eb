package models

const (
	RoleAdmin    = "admin"
	RoleStore    = "store"
	RoleCustomer = "customer"
)

func ValidRole(r string) bool {
	switch r {
	case RoleAdmin, RoleStore, RoleCustomer:
		return true
	}
	return false
}
