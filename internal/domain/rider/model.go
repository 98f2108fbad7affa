package rider

type Type string

const (
	TypeRider Type = "rider"
	TypeAdmin Type = "admin"
)

// Rider is the subset of a user account the order lifecycle needs.
type Rider struct {
	ID        string `json:"id"`
	Nickname  string `json:"nickname"`
	AvatarURL string `json:"avatar_url,omitempty"`
	OpenID    string `json:"-"` // payment identity
	UnionID   string `json:"-"` // message identity
	QRCode    string `json:"-"`
	Type      Type   `json:"user_type"`
}
