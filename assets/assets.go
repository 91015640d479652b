// Package assets はバイナリに同梱する設定とマイグレーションを提供します。
package assets

import "embed"

// Migrations は golang-migrate 形式のスキーマ定義です。
//
//go:embed migrations/*.sql
var Migrations embed.FS
