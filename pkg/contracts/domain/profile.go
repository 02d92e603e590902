package domain

// UserProfile is the signed-in user as shown on the profile page. Display
// only.
type UserProfile struct {
	Account     string `json:"account"`
	DisplayName string `json:"display_name"`
	Department  string `json:"department"`
	Position    string `json:"position"`
	Role        string `json:"role"`
	LastLogin   string `json:"last_login"`
}

// Name returns the display name, or the account when the page had none
func (p UserProfile) Name() string {
	if p.DisplayName != "" {
		return p.DisplayName
	}
	return p.Account
}
