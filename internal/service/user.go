package service

import (
	"context"
	"errors"
	"log"
	"strconv"

	"gorm.io/gorm"

	"backoffice_web/internal/cache"
	"backoffice_web/internal/models"
	"backoffice_web/internal/repository"
	"backoffice_web/internal/utils"
)

// Identity 是連線握手成功後附在連線上的身份資料，
// 連線存續期間不會重新載入
type Identity struct {
	UserID      uint                 `json:"user_id"`
	Username    string               `json:"username"`
	Name        string               `json:"name"`
	Email       string               `json:"email"`
	Role        models.UserRole      `json:"role"`
	Permissions models.PermissionSet `json:"permissions"`
}

type UserService struct {
	userRepo      repository.UserRepository
	identityCache *cache.Cache // 可以為 nil，nil 時每次都走資料庫
}

func NewUserService(userRepo repository.UserRepository, identityCache *cache.Cache) *UserService {
	return &UserService{userRepo: userRepo, identityCache: identityCache}
}

func (s *UserService) CreateUser(user *models.User) error {
	return s.userRepo.Create(user)
}

func (s *UserService) GetUserByUsername(username string) (*models.User, error) {
	return s.userRepo.FindByUsername(username)
}

func (s *UserService) GetUserByID(id uint) (*models.User, error) {
	user, err := s.userRepo.FindByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}

// IssueToken 為登入成功的用戶簽發 JWT token
func (s *UserService) IssueToken(user *models.User) (string, error) {
	return utils.GenerateToken(user.ID, user.Role)
}

// Authenticate 在連線握手時驗證 bearer 憑證並解析為身份資料。
// 憑證缺失、簽名或效期驗證失敗、用戶已不存在時都會失敗，
// 這裡不做重試，客戶端必須帶新憑證重新連線。
func (s *UserService) Authenticate(ctx context.Context, token string) (*Identity, error) {
	if token == "" {
		return nil, ErrInvalidToken
	}

	claims, err := utils.ParseToken(token)
	if err != nil || claims == nil {
		return nil, ErrInvalidToken
	}

	return s.LoadIdentity(ctx, claims.UserID)
}

// LoadIdentity 解析用戶身份與權限集合，優先讀取 Redis 快取
func (s *UserService) LoadIdentity(ctx context.Context, userID uint) (*Identity, error) {
	key := strconv.FormatUint(uint64(userID), 10)

	var identity Identity
	hit, err := s.identityCache.Get(ctx, key, &identity)
	if err != nil {
		// 快取故障時退回資料庫，不影響握手
		log.Printf("identity cache get failed: %v", err)
	}
	if hit {
		return &identity, nil
	}

	user, err := s.GetUserByID(userID)
	if err != nil {
		return nil, err
	}

	identity = Identity{
		UserID:      user.ID,
		Username:    user.Username,
		Name:        user.Name,
		Email:       user.Email,
		Role:        user.Role,
		Permissions: user.Permissions,
	}

	if err := s.identityCache.Set(ctx, key, &identity); err != nil {
		log.Printf("identity cache set failed: %v", err)
	}

	return &identity, nil
}

// InvalidateIdentity 使指定用戶的身份快取失效，用於權限變更後
func (s *UserService) InvalidateIdentity(ctx context.Context, userID uint) {
	key := strconv.FormatUint(uint64(userID), 10)
	if err := s.identityCache.Delete(ctx, key); err != nil {
		log.Printf("identity cache delete failed: %v", err)
	}
}
