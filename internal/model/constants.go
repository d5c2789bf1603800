package model

// MemberRole is the role of a user on a board.
type MemberRole string

const (
	MemberRoleOwner  MemberRole = "OWNER"
	MemberRoleEditor MemberRole = "EDITOR"
	MemberRoleViewer MemberRole = "VIEWER"
)

func (r MemberRole) String() string {
	return string(r)
}

// AssetType is the media type of an uploaded asset-library entry.
type AssetType string

const (
	AssetTypeImage AssetType = "IMAGE"
	AssetTypeLink  AssetType = "LINK"
)

func (a AssetType) String() string {
	return string(a)
}
