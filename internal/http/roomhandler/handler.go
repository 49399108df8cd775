package roomhandler

import (
	"net/http"

	"chatrelay/internal/ws"

	"github.com/gin-gonic/gin"
)

// Directory is the read side of the connection registry.
type Directory interface {
	Rooms() []ws.RoomSummary
	Usernames(roomID string) []string
}

type Handler struct {
	dir Directory
}

func New(dir Directory) *Handler { return &Handler{dir: dir} }

func (h *Handler) Register(r gin.IRoutes) {
	r.GET("/rooms", h.list)
	r.GET("/rooms/:id/users", h.users)
}

// @Summary		List live rooms
// @Description	Returns every room with at least one member.
// @Tags			Rooms
// @Success		200	{object}	RoomListResponse
// @Router			/rooms [get]
func (h *Handler) list(c *gin.Context) {
	c.JSON(http.StatusOK, RoomListResponse{Rooms: h.dir.Rooms()})
}

// @Summary		List room members
// @Description	Returns the display names in a room, in join order.
// @Tags			Rooms
// @Param			id	path		string	true	"Room ID"
// @Success		200	{object}	RoomUsersResponse
// @Failure		404	{object}	ErrorResponse
// @Router			/rooms/{id}/users [get]
func (h *Handler) users(c *gin.Context) {
	id := c.Param("id")
	users := h.dir.Usernames(id)
	if len(users) == 0 {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "room " + id + " not found"})
		return
	}
	c.JSON(http.StatusOK, RoomUsersResponse{RoomID: id, Users: users})
}
