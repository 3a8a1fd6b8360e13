package model

import (
	"encoding/json"
	"time"
)

// UserSettings はユーザーごとの不透明なJSON設定ブロブを表す。
// スキーマはフロントエンド都合で変わるため、サーバー側では中身を解釈しない。
type UserSettings struct {
	ID        string
	UserID    string
	Settings  json.RawMessage
	CreatedAt time.Time
	UpdatedAt time.Time
}
