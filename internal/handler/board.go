package handler

import (
	"encoding/json"
	"errors"
	"log"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"whiteboard-backend/internal/cache"
	"whiteboard-backend/internal/model"
	"whiteboard-backend/internal/presence"
	"whiteboard-backend/internal/protocol"
)

// BoardNotifier pushes board-level metadata changes to connected clients.
// Implemented by BoardHub.
type BoardNotifier interface {
	NotifyBoardUpdate(boardID int64, payload protocol.BoardUpdatePayload)
}

// BoardHandler serves the board REST API: board lifecycle, the element
// persistence endpoints the realtime clients call in parallel with their
// broadcasts, and the membership list.
type BoardHandler struct {
	db       *gorm.DB
	cache    *cache.RedisClient
	presence *presence.Manager
	notifier BoardNotifier
}

// NewBoardHandler builds a BoardHandler.
func NewBoardHandler(db *gorm.DB, cacheClient *cache.RedisClient, presenceMgr *presence.Manager, notifier BoardNotifier) *BoardHandler {
	return &BoardHandler{db: db, cache: cacheClient, presence: presenceMgr, notifier: notifier}
}

// CreateBoardRequest is the create-board body.
type CreateBoardRequest struct {
	Title string `json:"title"`
}

// CreateBoard creates a board and enrolls the creator as OWNER.
func (h *BoardHandler) CreateBoard(c *fiber.Ctx) error {
	userID := c.Locals("userID").(int64)

	var req CreateBoardRequest
	if err := c.BodyParser(&req); err != nil || req.Title == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "title is required"})
	}

	board := model.Board{Title: req.Title, OwnerID: userID}
	err := h.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&board).Error; err != nil {
			return err
		}
		member := model.BoardMember{
			BoardID: board.ID,
			UserID:  userID,
			Role:    model.MemberRoleOwner.String(),
		}
		return tx.Create(&member).Error
	})
	if err != nil {
		log.Printf("[Board] Failed to create board: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to create board"})
	}

	return c.Status(fiber.StatusCreated).JSON(board)
}

// ListBoards returns every board the user belongs to, archived ones included.
func (h *BoardHandler) ListBoards(c *fiber.Ctx) error {
	userID := c.Locals("userID").(int64)

	var boards []model.Board
	err := h.db.
		Joins("JOIN board_members bm ON bm.board_id = boards.id").
		Where("bm.user_id = ?", userID).
		Order("boards.updated_at DESC").
		Find(&boards).Error
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to list boards"})
	}

	return c.JSON(fiber.Map{"boards": boards})
}

// boardElementEntries loads the board's elements ordered by z-index, going
// through the snapshot cache when it is warm.
func (h *BoardHandler) boardElementEntries(c *fiber.Ctx, boardID int64) ([]protocol.ElementEntry, error) {
	if h.cache != nil {
		if cached, err := h.cache.GetBoardSnapshot(c.Context(), boardID); err == nil && cached != nil {
			return cached, nil
		}
	}

	var rows []model.BoardElement
	if err := h.db.Where("board_id = ?", boardID).Order("z_index ASC, id ASC").Find(&rows).Error; err != nil {
		return nil, err
	}

	entries := make([]protocol.ElementEntry, 0, len(rows))
	for _, row := range rows {
		entry := protocol.ElementEntry{AssetID: row.AssetID, UUID: row.UUID}
		if err := json.Unmarshal(row.Element, &entry.Element); err != nil {
			log.Printf("[Board] Skipping corrupt element %s on board %d: %v", row.UUID, boardID, err)
			continue
		}
		entries = append(entries, entry)
	}

	if h.cache != nil {
		if err := h.cache.SetBoardSnapshot(c.Context(), boardID, entries); err != nil {
			log.Printf("[Board] Failed to warm snapshot cache for board %d: %v", boardID, err)
		}
	}
	return entries, nil
}

// GetBoard returns board metadata, the element list ordered by z-index, and
// the member list annotated with live presence.
func (h *BoardHandler) GetBoard(c *fiber.Ctx) error {
	boardID := c.Locals("boardID").(int64)

	var board model.Board
	if err := h.db.Preload("Members.User").First(&board, boardID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "board not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to load board"})
	}

	entries, err := h.boardElementEntries(c, boardID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to load elements"})
	}

	online := map[int64]bool{}
	if h.presence != nil {
		ids, err := h.presence.OnlineUserIDs(c.Context(), boardID)
		if err != nil {
			log.Printf("[Board] Presence lookup failed for board %d: %v", boardID, err)
		}
		for _, id := range ids {
			online[id] = true
		}
	}

	members := make([]fiber.Map, 0, len(board.Members))
	for _, m := range board.Members {
		members = append(members, fiber.Map{
			"user_id":  m.UserID,
			"nickname": m.User.Nickname,
			"role":     m.Role,
			"online":   online[m.UserID],
		})
	}

	return c.JSON(fiber.Map{
		"id":         board.ID,
		"title":      board.Title,
		"deleted_at": board.DeletedAt,
		"elements":   entries,
		"members":    members,
	})
}

// UpdateBoardRequest is the rename body.
type UpdateBoardRequest struct {
	Title string `json:"title"`
}

// UpdateBoard renames a board and notifies connected clients.
func (h *BoardHandler) UpdateBoard(c *fiber.Ctx) error {
	boardID := c.Locals("boardID").(int64)

	var req UpdateBoardRequest
	if err := c.BodyParser(&req); err != nil || req.Title == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "title is required"})
	}

	if err := h.db.Model(&model.Board{}).Where("id = ?", boardID).Update("title", req.Title).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to update board"})
	}

	if h.notifier != nil {
		h.notifier.NotifyBoardUpdate(boardID, protocol.BoardUpdatePayload{
			WhiteboardID: boardID,
			Title:        &req.Title,
		})
	}
	return c.JSON(fiber.Map{"success": true})
}

// ArchiveBoard soft-deletes a board. Connected clients are told so they can
// freeze their canvases; archived boards refuse new socket joins.
func (h *BoardHandler) ArchiveBoard(c *fiber.Ctx) error {
	boardID := c.Locals("boardID").(int64)

	now := time.Now().UTC()
	if err := h.db.Model(&model.Board{}).Where("id = ?", boardID).Update("deleted_at", &now).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to archive board"})
	}

	if h.notifier != nil {
		h.notifier.NotifyBoardUpdate(boardID, protocol.BoardUpdatePayload{
			WhiteboardID: boardID,
			DeletedAt:    &now,
		})
	}
	log.Printf("[Board] Board %d archived", boardID)
	return c.JSON(fiber.Map{"success": true, "deleted_at": now})
}

// RestoreBoard clears the archive flag.
func (h *BoardHandler) RestoreBoard(c *fiber.Ctx) error {
	boardID := c.Locals("boardID").(int64)

	if err := h.db.Model(&model.Board{}).Where("id = ?", boardID).Update("deleted_at", nil).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to restore board"})
	}

	if h.notifier != nil {
		h.notifier.NotifyBoardUpdate(boardID, protocol.BoardUpdatePayload{WhiteboardID: boardID})
	}
	return c.JSON(fiber.Map{"success": true})
}

// CreateElementsRequest is the element persistence body. Entries already
// present (same uuid) are overwritten; persistence follows the same
// last-writer-wins rule as the realtime layer.
type CreateElementsRequest struct {
	Elements []protocol.ElementEntry `json:"elements"`
}

// CreateElements upserts elements by uuid.
func (h *BoardHandler) CreateElements(c *fiber.Ctx) error {
	boardID := c.Locals("boardID").(int64)
	userID := c.Locals("userID").(int64)

	var req CreateElementsRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	if len(req.Elements) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "elements are required"})
	}

	err := h.db.Transaction(func(tx *gorm.DB) error {
		for _, entry := range req.Elements {
			if entry.UUID == "" || entry.Element == nil {
				return errors.New("element entry missing uuid or body")
			}
			payload, err := json.Marshal(entry.Element)
			if err != nil {
				return err
			}

			var existing model.BoardElement
			err = tx.Where("board_id = ? AND uuid = ?", boardID, entry.UUID).First(&existing).Error
			switch {
			case err == nil:
				existing.AssetID = entry.AssetID
				existing.Kind = string(entry.Element.Type)
				existing.ZIndex = entry.Element.ZIndex
				existing.Element = datatypes.JSON(payload)
				if err := tx.Save(&existing).Error; err != nil {
					return err
				}
			case errors.Is(err, gorm.ErrRecordNotFound):
				row := model.BoardElement{
					BoardID:   boardID,
					UUID:      entry.UUID,
					AssetID:   entry.AssetID,
					Kind:      string(entry.Element.Type),
					ZIndex:    entry.Element.ZIndex,
					Element:   datatypes.JSON(payload),
					CreatedBy: userID,
				}
				if err := tx.Create(&row).Error; err != nil {
					return err
				}
			default:
				return err
			}
		}
		return nil
	})
	if err != nil {
		log.Printf("[Board] Failed to persist elements on board %d: %v", boardID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to persist elements"})
	}

	if h.cache != nil {
		h.cache.InvalidateBoard(c.Context(), boardID)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "count": len(req.Elements)})
}

// OrderElementsRequest is the stacking-order persistence body.
type OrderElementsRequest struct {
	Direction protocol.OrderDirection `json:"direction"`
	UUIDs     []string                `json:"uuids"`
}

// UpdateElementOrder rewrites z-indexes so the named elements land above (or
// below) everything else on the board, preserving their relative order.
func (h *BoardHandler) UpdateElementOrder(c *fiber.Ctx) error {
	boardID := c.Locals("boardID").(int64)

	var req OrderElementsRequest
	if err := c.BodyParser(&req); err != nil || !req.Direction.Valid() || len(req.UUIDs) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "direction and uuids are required"})
	}

	err := h.db.Transaction(func(tx *gorm.DB) error {
		var bound struct {
			Max int
			Min int
		}
		if err := tx.Model(&model.BoardElement{}).
			Where("board_id = ?", boardID).
			Select("COALESCE(MAX(z_index),0) AS max, COALESCE(MIN(z_index),0) AS min").
			Scan(&bound).Error; err != nil {
			return err
		}

		for i, uuid := range req.UUIDs {
			var z int
			if req.Direction == protocol.BringToFront {
				z = bound.Max + 1 + i
			} else {
				z = bound.Min - len(req.UUIDs) + i
			}
			if err := tx.Model(&model.BoardElement{}).
				Where("board_id = ? AND uuid = ?", boardID, uuid).
				Update("z_index", z).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to update order"})
	}

	if h.cache != nil {
		h.cache.InvalidateBoard(c.Context(), boardID)
	}
	return c.JSON(fiber.Map{"success": true})
}

// DeleteElement removes one element by uuid. Deleting an element that is
// already gone succeeds; concurrent deletes of the same element are expected.
func (h *BoardHandler) DeleteElement(c *fiber.Ctx) error {
	boardID := c.Locals("boardID").(int64)
	uuid := c.Params("uuid")
	if uuid == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "uuid is required"})
	}

	if err := h.db.Where("board_id = ? AND uuid = ?", boardID, uuid).Delete(&model.BoardElement{}).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to delete element"})
	}

	if h.cache != nil {
		h.cache.InvalidateBoard(c.Context(), boardID)
	}
	return c.JSON(fiber.Map{"success": true})
}

// AddMemberRequest is the add-member body.
type AddMemberRequest struct {
	UserID int64  `json:"user_id"`
	Role   string `json:"role"`
}

// AddMember enrolls a user on the board.
func (h *BoardHandler) AddMember(c *fiber.Ctx) error {
	boardID := c.Locals("boardID").(int64)

	var req AddMemberRequest
	if err := c.BodyParser(&req); err != nil || req.UserID == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "user_id is required"})
	}
	role := req.Role
	if role == "" {
		role = model.MemberRoleEditor.String()
	}

	member := model.BoardMember{BoardID: boardID, UserID: req.UserID, Role: role}
	if err := h.db.Create(&member).Error; err != nil {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "failed to add member"})
	}

	return c.Status(fiber.StatusCreated).JSON(member)
}

// RemoveMember drops a user from the board.
func (h *BoardHandler) RemoveMember(c *fiber.Ctx) error {
	boardID := c.Locals("boardID").(int64)

	memberID, err := strconv.ParseInt(c.Params("userId"), 10, 64)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid user ID"})
	}

	if err := h.db.Where("board_id = ? AND user_id = ?", boardID, memberID).Delete(&model.BoardMember{}).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to remove member"})
	}
	return c.JSON(fiber.Map{"success": true})
}
