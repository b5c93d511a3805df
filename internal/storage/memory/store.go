package memory

import (
	"sync"

	"inbox/backend/internal/domain"
)

// MessageStore 在内存中保存一个会话的有序邮件集合。
//
// 每次变更按 ID 扫描集合并生成新的切片（替换或移除命中记录），
// 读取方拿到的快照不会被后续变更影响。未命中的 ID 一律静默忽略。
type MessageStore struct {
	mu       sync.RWMutex
	messages []domain.Message
}

// NewMessageStore 使用初始数据创建邮件存储。
func NewMessageStore(seed []domain.Message) (*MessageStore, error) {
	s := &MessageStore{}
	if err := s.Replace(seed); err != nil {
		return nil, err
	}
	return s, nil
}

// Replace 整体替换邮件集合，不校验 ID 唯一性。
// 分类非法、已读且标记为新邮件、发件人邮箱格式错误时返回错误，原集合保持不变。
func (s *MessageStore) Replace(messages []domain.Message) error {
	if err := domain.ValidateMessages(messages); err != nil {
		return err
	}

	next := make([]domain.Message, len(messages))
	copy(next, messages)

	s.mu.Lock()
	s.messages = next
	s.mu.Unlock()
	return nil
}

// Update 将 patch 合并到 ID 匹配的邮件，保持顺序。
func (s *MessageStore) Update(id int64, patch domain.MessagePatch) (bool, error) {
	if err := patch.Validate(); err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.mapLocked(id, patch.Apply), nil
}

// Delete 删除所有该 ID 的邮件，其余邮件相对顺序不变。
func (s *MessageStore) Delete(id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := make([]domain.Message, 0, len(s.messages))
	for _, m := range s.messages {
		if m.ID != id {
			next = append(next, m)
		}
	}
	if len(next) == len(s.messages) {
		return false
	}

	s.messages = next
	return true
}

// Archive 归档邮件，记录仍保留在集合中。
func (s *MessageStore) Archive(id int64) bool {
	matched, _ := s.Update(id, domain.ArchivePatch())
	return matched
}

// MarkRead 标记已读并清除新邮件标记。
func (s *MessageStore) MarkRead(id int64) bool {
	matched, _ := s.Update(id, domain.ReadPatch())
	return matched
}

// ToggleStar 切换星标，取决于该邮件当前的星标状态。
func (s *MessageStore) ToggleStar(id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.mapLocked(id, func(m domain.Message) domain.Message {
		m.Starred = !m.Starred
		return m
	})
}

// Get 获取单封邮件。
func (s *MessageStore) Get(id int64) (domain.Message, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, m := range s.messages {
		if m.ID == id {
			return m, true
		}
	}
	return domain.Message{}, false
}

// Snapshot 返回当前集合的有序副本。
func (s *MessageStore) Snapshot() []domain.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// Len 返回邮件数量。
func (s *MessageStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.messages)
}

// mapLocked 对 ID 匹配的记录应用 fn，未命中时不替换集合。
func (s *MessageStore) mapLocked(id int64, fn func(domain.Message) domain.Message) bool {
	var next []domain.Message
	for i, m := range s.messages {
		if m.ID != id {
			continue
		}
		if next == nil {
			next = make([]domain.Message, len(s.messages))
			copy(next, s.messages)
		}
		next[i] = fn(m)
	}
	if next == nil {
		return false
	}

	s.messages = next
	return true
}
