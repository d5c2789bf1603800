package model

import (
	"time"

	"gorm.io/datatypes"
)

// User is an account that can own or join boards.
type User struct {
	ID         int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Email      string    `gorm:"type:varchar(255);uniqueIndex;not null" json:"email"`
	Nickname   string    `gorm:"type:varchar(100);not null" json:"nickname"`
	ProfileImg *string   `gorm:"type:text" json:"profile_img,omitempty"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`

	// Relations
	Boards []BoardMember `gorm:"foreignKey:UserID" json:"boards,omitempty"`
}

func (User) TableName() string {
	return "users"
}

// Board is the aggregate root of a whiteboard. A non-nil DeletedAt means the
// board is archived: rendered read-only, never joined over the socket.
type Board struct {
	ID        int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	Title     string     `gorm:"type:varchar(200);not null" json:"title"`
	OwnerID   int64      `gorm:"not null" json:"owner_id"`
	DeletedAt *time.Time `gorm:"index" json:"deleted_at,omitempty"`
	CreatedAt time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time  `gorm:"autoUpdateTime" json:"updated_at"`

	// Relations
	Owner    User           `gorm:"foreignKey:OwnerID" json:"owner,omitempty"`
	Members  []BoardMember  `gorm:"foreignKey:BoardID" json:"members,omitempty"`
	Elements []BoardElement `gorm:"foreignKey:BoardID" json:"elements,omitempty"`
}

func (Board) TableName() string {
	return "boards"
}

// Archived reports whether the board is read-only.
func (b *Board) Archived() bool {
	return b.DeletedAt != nil
}

// BoardMember links a user to a board. Online is transient presence state and
// never hits storage.
type BoardMember struct {
	ID       int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	BoardID  int64     `gorm:"not null;uniqueIndex:idx_board_user" json:"board_id"`
	UserID   int64     `gorm:"not null;uniqueIndex:idx_board_user" json:"user_id"`
	Role     string    `gorm:"type:varchar(20);default:'EDITOR'" json:"role"`
	JoinedAt time.Time `gorm:"autoCreateTime" json:"joined_at"`

	Online bool `gorm:"-" json:"online"`

	// Relations
	Board Board `gorm:"foreignKey:BoardID" json:"board,omitempty"`
	User  User  `gorm:"foreignKey:UserID" json:"user,omitempty"`
}

func (BoardMember) TableName() string {
	return "board_members"
}

// BoardElement is one persisted whiteboard element. The synchronized wire
// attributes live in the jsonb payload; uuid and z-index are lifted into
// columns because the sync protocol is keyed on them.
type BoardElement struct {
	ID        int64          `gorm:"primaryKey;autoIncrement" json:"id"`
	BoardID   int64          `gorm:"not null;uniqueIndex:idx_board_element_uuid;index:idx_board_z" json:"board_id"`
	UUID      string         `gorm:"type:varchar(64);not null;uniqueIndex:idx_board_element_uuid" json:"uuid"`
	AssetID   *int64         `json:"asset_id,omitempty"`
	Kind      string         `gorm:"type:varchar(30);not null" json:"kind"`
	ZIndex    int            `gorm:"not null;default:0;index:idx_board_z" json:"z_index"`
	Element   datatypes.JSON `gorm:"type:jsonb;not null" json:"element"`
	CreatedBy int64          `gorm:"not null" json:"created_by"`
	CreatedAt time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime" json:"updated_at"`

	// Relations
	Board Board  `gorm:"foreignKey:BoardID" json:"board,omitempty"`
	Asset *Asset `gorm:"foreignKey:AssetID" json:"asset,omitempty"`
}

func (BoardElement) TableName() string {
	return "board_elements"
}

// Asset is an asset-library entry an image element can reference.
type Asset struct {
	ID         int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	OwnerID    int64     `gorm:"not null" json:"owner_id"`
	Title      string    `gorm:"type:varchar(200)" json:"title"`
	Type       string    `gorm:"type:varchar(20);default:'IMAGE'" json:"type"`
	MimeType   string    `gorm:"type:varchar(100)" json:"mime_type"`
	URL        string    `gorm:"type:text;not null" json:"url"`
	PreviewURL string    `gorm:"type:text" json:"preview_url"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`

	// Relations
	Owner User `gorm:"foreignKey:OwnerID" json:"owner,omitempty"`
}

func (Asset) TableName() string {
	return "assets"
}
