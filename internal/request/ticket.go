package request

import (
	"fmt"
	"math/rand/v2"
)

// ticketPrefix はチケット番号の接頭辞。
const ticketPrefix = "RB"

// NewTicketNo は表示用チケット番号（RB-####）を生成する。
// 4桁のランダムな数字であり、一意性は保証しない。識別にはリクエストIDを使用すること。
func NewTicketNo() string {
	return fmt.Sprintf("%s-%04d", ticketPrefix, 1000+rand.IntN(9000))
}
