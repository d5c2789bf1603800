package middleware

import (
	"strconv"

	"whiteboard-backend/internal/auth"
	"whiteboard-backend/internal/service"

	"github.com/gofiber/fiber/v2"
)

// BoardMiddleware guards board routes with membership checks.
type BoardMiddleware struct {
	memberService *service.MemberService
}

// NewBoardMiddleware builds a BoardMiddleware.
func NewBoardMiddleware(memberService *service.MemberService) *BoardMiddleware {
	return &BoardMiddleware{memberService: memberService}
}

func getBoardIDFromContext(c *fiber.Ctx) (int64, error) {
	idStr := c.Params("boardId")
	if idStr == "" {
		idStr = c.Params("id")
	}
	if idStr == "" {
		return 0, fiber.NewError(fiber.StatusBadRequest, "board ID is required")
	}
	return strconv.ParseInt(idStr, 10, 64)
}

// RequireMembership admits board members and the owner.
func (m *BoardMiddleware) RequireMembership() fiber.Handler {
	return func(c *fiber.Ctx) error {
		claims, err := auth.GetClaimsFromContext(c)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "unauthorized",
			})
		}

		boardID, err := getBoardIDFromContext(c)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "invalid board ID",
			})
		}

		if !m.memberService.IsBoardMemberOrOwner(boardID, claims.UserID) {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error": "not a board member",
			})
		}

		c.Locals("boardID", boardID)
		return c.Next()
	}
}

// RequireEditor admits members whose role allows content mutation.
func (m *BoardMiddleware) RequireEditor() fiber.Handler {
	return func(c *fiber.Ctx) error {
		claims, err := auth.GetClaimsFromContext(c)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "unauthorized",
			})
		}

		boardID, err := getBoardIDFromContext(c)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "invalid board ID",
			})
		}

		if !m.memberService.CanEdit(boardID, claims.UserID) {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error": "editor permission required",
			})
		}

		c.Locals("boardID", boardID)
		return c.Next()
	}
}

// RequireOwnership admits the board owner only.
func (m *BoardMiddleware) RequireOwnership() fiber.Handler {
	return func(c *fiber.Ctx) error {
		claims, err := auth.GetClaimsFromContext(c)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "unauthorized",
			})
		}

		boardID, err := getBoardIDFromContext(c)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "invalid board ID",
			})
		}

		if !m.memberService.IsBoardOwner(boardID, claims.UserID) {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error": "owner permission required",
			})
		}

		c.Locals("boardID", boardID)
		return c.Next()
	}
}
