package service

import (
	"backoffice_web/internal/cache"
	"backoffice_web/internal/repository"
)

type Services struct {
	User       *UserService
	Chat       *ChatService
	Rooms      *RoomManager
	Dispatcher *Dispatcher
}

func NewServices(repos *repository.Repositories, identityCache *cache.Cache) *Services {
	userService := NewUserService(repos.User, identityCache)
	chatService := NewChatService(repos.Conversation, repos.Message, repos.User)
	rooms := NewRoomManager()
	dispatcher := NewDispatcher(rooms, chatService)

	return &Services{
		User:       userService,
		Chat:       chatService,
		Rooms:      rooms,
		Dispatcher: dispatcher,
	}
}
