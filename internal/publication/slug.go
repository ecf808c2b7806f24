package publication

import (
	"strings"

	"github.com/google/uuid"
)

// fallbackSlug はタイトルから英数字が得られなかった場合のslug。
const fallbackSlug = "post"

// maxSlugAttempts は投稿の作成を試みる最大回数。2回目以降はslugにサフィックスを付ける。
const maxSlugAttempts = 3

// slugify はタイトルを小文字の英数字とハイフンだけからなるslugに変換する。
func slugify(title string) string {
	var b strings.Builder
	pendingHyphen := false
	for _, r := range strings.ToLower(title) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			if pendingHyphen && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingHyphen = false
			b.WriteRune(r)
		default:
			pendingHyphen = true
		}
	}
	if b.Len() == 0 {
		return fallbackSlug
	}
	return b.String()
}

// withSuffix はslugの衝突を避けるため、UUID由来の8桁の16進数を付ける。
func withSuffix(base string) string {
	return base + "-" + strings.ReplaceAll(uuid.New().String(), "-", "")[:8]
}
