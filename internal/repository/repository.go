package repository

import "backoffice_web/internal/storage"

type Repositories struct {
	User         UserRepository
	Conversation ConversationRepository
	Message      MessageRepository
}

func NewRepositories(db *storage.PostgresDB) *Repositories {
	return &Repositories{
		User:         NewUserRepository(db),
		Conversation: NewConversationRepository(db),
		Message:      NewMessageRepository(db),
	}
}
