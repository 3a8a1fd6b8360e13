// Package model はドメインモデルを定義する。
package model

import "time"

// AuthUser は認証プロバイダが解決したユーザーを表す。
// idとemailの正は認証プロバイダ側にあり、プロフィール行は同じidでミラーされる。
type AuthUser struct {
	ID    string
	Email string
}

// Profile はusersテーブルの1行（ユーザープロフィール）を表す。
// full_nameとnameは旧スキーマ互換のため両方保持する。
type Profile struct {
	ID                   string
	Email                string
	Name                 string
	FullName             string
	Bio                  string
	AvatarURL            string
	SubscriptionStatus   string
	APIUsageCurrentMonth int
	APILimitPerMonth     int
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// ProfileUpdate はプロフィールの部分更新を表す。
// nilのフィールドは変更しない。
type ProfileUpdate struct {
	FullName  *string
	Email     *string
	Bio       *string
	AvatarURL *string
}

// Subscription はアクティブな課金サブスクリプションを表す。
// このコアからは読み取り専用で、課金サブシステムが書き込む。
type Subscription struct {
	ID               string
	UserID           string
	Status           string
	Interval         string
	Amount           int
	CurrentPeriodEnd time.Time
	CreatedAt        time.Time
}

// ProfileView はプロフィールとサブスクリプションを結合した表示用ビュー。
// PlanNameはサブスクリプションから導出され、保存はされない。
type ProfileView struct {
	ID                   string
	Email                string
	FullName             string
	Bio                  string
	AvatarURL            string
	SubscriptionStatus   string
	APIUsageCurrentMonth int
	APILimitPerMonth     int
	CreatedAt            time.Time
	UpdatedAt            time.Time

	PlanName         string
	PlanStatus       string
	CurrentPeriodEnd *time.Time
}
