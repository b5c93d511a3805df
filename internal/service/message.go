package service

import (
	"time"

	"go.uber.org/zap"

	"inbox/backend/internal/domain"
	"inbox/backend/internal/monitoring"
	"inbox/backend/internal/session"
)

// ChangeNotifier 接收邮件集合变更，用于通知视图重新渲染
type ChangeNotifier interface {
	NotifyMessagesChanged(change domain.MessageChange)
}

// MessageService 封装会话内的邮件操作。
//
// 所有方法都显式接收已解析的会话；变更命中记录后记录指标并推送变更快照，
// 未命中时集合保持不变且不推送。
type MessageService struct {
	registry *session.Registry
	metrics  *monitoring.Metrics
	notifier ChangeNotifier
	log      *zap.Logger
	now      func() time.Time
}

// NewMessageService 创建邮件业务服务。
func NewMessageService(registry *session.Registry, metrics *monitoring.Metrics, log *zap.Logger) *MessageService {
	if log == nil {
		log = zap.NewNop()
	}
	return &MessageService{
		registry: registry,
		metrics:  metrics,
		log:      log,
		now:      time.Now,
	}
}

// SetNotifier 设置变更通知器
func (s *MessageService) SetNotifier(notifier ChangeNotifier) {
	s.notifier = notifier
}

// List 返回满足筛选条件的邮件，保持集合顺序
func (s *MessageService) List(sess *session.Session, filter domain.MessageFilter) []domain.Message {
	snapshot := sess.Store.Snapshot()
	result := make([]domain.Message, 0, len(snapshot))
	for _, m := range snapshot {
		if filter.Match(m) {
			result = append(result, m)
		}
	}
	return result
}

// Get 获取单封邮件
func (s *MessageService) Get(sess *session.Session, id int64) (domain.Message, error) {
	m, ok := sess.Store.Get(id)
	if !ok {
		return domain.Message{}, ErrMessageNotFound
	}
	return m, nil
}

// Replace 整体替换会话内的邮件集合
func (s *MessageService) Replace(sess *session.Session, messages []domain.Message) (result []domain.Message, err error) {
	sess.Exclusive(func() {
		if err = sess.Store.Replace(messages); err != nil {
			return
		}
		result = s.afterMutation(sess, domain.OpReplace, 0, true)
	})
	return result, err
}

// Reset 恢复会话的初始邮件
func (s *MessageService) Reset(sess *session.Session) (result []domain.Message, err error) {
	sess.Exclusive(func() {
		if _, err = s.registry.Reset(sess.ID); err != nil {
			return
		}
		result = s.afterMutation(sess, domain.OpReplace, 0, true)
	})
	return result, err
}

// Update 对指定邮件应用部分更新
func (s *MessageService) Update(sess *session.Session, id int64, patch domain.MessagePatch) (result []domain.Message, err error) {
	sess.Exclusive(func() {
		var matched bool
		if matched, err = sess.Store.Update(id, patch); err != nil {
			return
		}
		result = s.afterMutation(sess, domain.OpUpdate, id, matched)
	})
	return result, err
}

// Delete 删除所有该 id 的邮件
func (s *MessageService) Delete(sess *session.Session, id int64) []domain.Message {
	return s.mutate(sess, domain.OpDelete, id, sess.Store.Delete)
}

// Archive 归档邮件
func (s *MessageService) Archive(sess *session.Session, id int64) []domain.Message {
	return s.mutate(sess, domain.OpArchive, id, sess.Store.Archive)
}

// MarkRead 标记已读，同时清除新邮件标记
func (s *MessageService) MarkRead(sess *session.Session, id int64) []domain.Message {
	return s.mutate(sess, domain.OpMarkRead, id, sess.Store.MarkRead)
}

// ToggleStar 切换星标
func (s *MessageService) ToggleStar(sess *session.Session, id int64) []domain.Message {
	return s.mutate(sess, domain.OpToggleStar, id, sess.Store.ToggleStar)
}

// mutate 在会话写锁内执行变更并发布快照，
// 并发变更的通知顺序与其生效顺序一致
func (s *MessageService) mutate(sess *session.Session, op domain.ChangeOp, id int64, apply func(int64) bool) (result []domain.Message) {
	sess.Exclusive(func() {
		result = s.afterMutation(sess, op, id, apply(id))
	})
	return result
}

func (s *MessageService) afterMutation(sess *session.Session, op domain.ChangeOp, id int64, matched bool) []domain.Message {
	if s.metrics != nil {
		s.metrics.RecordMutation(op, matched)
	}

	snapshot := sess.Store.Snapshot()
	if !matched {
		s.log.Debug("mutation matched no message",
			zap.String("session_id", sess.ID),
			zap.String("op", string(op)),
			zap.Int64("message_id", id))
		return snapshot
	}

	if s.notifier != nil {
		s.notifier.NotifyMessagesChanged(domain.MessageChange{
			SessionID: sess.ID,
			Op:        op,
			MessageID: id,
			Messages:  snapshot,
			At:        s.now().UTC(),
		})
	}
	return snapshot
}
