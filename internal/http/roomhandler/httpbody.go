package roomhandler

import "chatrelay/internal/ws"

type RoomListResponse struct {
	Rooms []ws.RoomSummary `json:"rooms"`
} // @name RoomListResponse

type RoomUsersResponse struct {
	RoomID string   `json:"roomId"`
	Users  []string `json:"users"`
} // @name RoomUsersResponse

type ErrorResponse struct {
	Error string `json:"error"`
} // @name ErrorResponse
