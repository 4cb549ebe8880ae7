package auth

import "time"

// 学生登録リクエスト
// 必須チェックはメッセージを出し分けたいので service 側で行う
type RegisterRequest struct {
	Name      string `json:"name"`
	StudentID string `json:"studentId"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	Dept      string `json:"dept"`
	Phone     string `json:"phone"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// プロフィール更新（空フィールドは据え置き、password は任意）
type UpdateProfileRequest struct {
	Name     string `json:"name"`
	Dept     string `json:"dept"`
	Phone    string `json:"phone"`
	Password string `json:"password"`
}

type StudentView struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	StudentID string    `json:"studentId"`
	Email     string    `json:"email"`
	Dept      string    `json:"dept"`
	Phone     string    `json:"phone"`
	IsActive  bool      `json:"isActive"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
