// Package account は開発用トークンの発行と、認証済みユーザー自身のプロフィール・
// フォローカテゴリの管理を提供する。
//
// OAuthによるサインインは扱わない。開発用トークンはメールアドレスでユーザーを
// 作成または再利用し、そのユーザーとして署名したJWTを返す。
package account
