package service

import (
	"whiteboard-backend/internal/model"

	"gorm.io/gorm"
)

// MemberService answers board membership and permission questions.
type MemberService struct {
	db *gorm.DB
}

// NewMemberService builds a MemberService.
func NewMemberService(db *gorm.DB) *MemberService {
	return &MemberService{db: db}
}

// IsBoardMember reports whether the user has a membership row on the board.
func (s *MemberService) IsBoardMember(boardID, userID int64) bool {
	var count int64
	s.db.Model(&model.BoardMember{}).
		Where("board_id = ? AND user_id = ?", boardID, userID).
		Count(&count)
	return count > 0
}

// IsBoardOwner reports whether the user owns the board.
func (s *MemberService) IsBoardOwner(boardID, userID int64) bool {
	var ownerID int64
	s.db.Table("boards").Where("id = ?", boardID).Select("owner_id").Scan(&ownerID)
	return ownerID == userID
}

// IsBoardMemberOrOwner reports member or owner status.
func (s *MemberService) IsBoardMemberOrOwner(boardID, userID int64) bool {
	return s.IsBoardMember(boardID, userID) || s.IsBoardOwner(boardID, userID)
}

// CanEdit reports whether the user may mutate board content. Viewers can
// read and follow the realtime stream but never write.
func (s *MemberService) CanEdit(boardID, userID int64) bool {
	if s.IsBoardOwner(boardID, userID) {
		return true
	}
	var count int64
	s.db.Model(&model.BoardMember{}).
		Where("board_id = ? AND user_id = ? AND role IN ?", boardID, userID,
			[]string{model.MemberRoleOwner.String(), model.MemberRoleEditor.String()}).
		Count(&count)
	return count > 0
}

// MemberRole returns the user's role on the board.
func (s *MemberService) MemberRole(boardID, userID int64) (string, error) {
	var member model.BoardMember
	err := s.db.Where("board_id = ? AND user_id = ?", boardID, userID).First(&member).Error
	if err != nil {
		return "", err
	}
	return member.Role, nil
}
