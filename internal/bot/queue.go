package bot

import (
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// userQueues holds the pending updates of each user. A user present in
// pending has a drainer running; updates are handed out in arrival order.
type userQueues struct {
	mu      sync.Mutex
	pending map[int64][]tgbotapi.Update
}

func newUserQueues() *userQueues {
	return &userQueues{pending: make(map[int64][]tgbotapi.Update)}
}

// push queues u and reports whether the caller has to start a drainer
func (q *userQueues) push(userID int64, u tgbotapi.Update) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	_, running := q.pending[userID]
	q.pending[userID] = append(q.pending[userID], u)
	return !running
}

// next pops the oldest pending update. Once the queue is empty the user is
// forgotten and the drainer must exit.
func (q *userQueues) next(userID int64) (tgbotapi.Update, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	queue := q.pending[userID]
	if len(queue) == 0 {
		delete(q.pending, userID)
		return tgbotapi.Update{}, false
	}
	u := queue[0]
	queue[0] = tgbotapi.Update{}
	q.pending[userID] = queue[1:]
	return u, true
}

func (q *userQueues) active() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}
