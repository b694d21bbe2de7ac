package service

import "errors"

var (
	ErrConversationNotFound = errors.New("對話不存在")
	ErrNotParticipant       = errors.New("用戶不是此對話的參與者")
	ErrPermissionDenied     = errors.New("沒有發送消息的權限")
	ErrMessageNotFound      = errors.New("消息不存在")
	ErrNotMessageOwner      = errors.New("只有發送者可以修改自己的消息")
	ErrMessageDeleted       = errors.New("消息已被刪除")
	ErrInvalidMessageType   = errors.New("無效的消息類型")
	ErrInvalidParticipants  = errors.New("一對一對話必須恰好包含兩位參與者")
	ErrAlreadyParticipant   = errors.New("用戶已經是此對話的參與者")
	ErrNotGroupConversation = errors.New("只有群組對話可以新增參與者")
	ErrUserNotFound         = errors.New("用戶不存在")
	ErrInvalidToken         = errors.New("無效或過期的憑證")
)
