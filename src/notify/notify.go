package notify

import (
	"context"
	"fmt"
	"sync"

	"github.com/xpwu/go-log/log"
)

// Notifier 通知渠道
type Notifier interface {
	Send(ctx context.Context, msg string) error
}

// Log 只写日志的通知渠道
type Log struct{}

// Send 写一行日志
func (Log) Send(ctx context.Context, msg string) error {
	_, logger := log.WithCtx(ctx)
	logger.PushPrefix("Notify")
	logger.Info(msg)
	return nil
}

// Async 把通知放进有界队列由单独的goroutine发送
//
// Notify 从不阻塞调用方：队列满时丢弃消息，发送失败只记日志，不重试。
type Async struct {
	next  Notifier
	queue chan string

	mu      sync.Mutex
	closed  bool
	dropped int

	done chan struct{}
}

// DefaultQueueSize 默认队列长度
const DefaultQueueSize = 64

// NewAsync 启动发送goroutine
func NewAsync(next Notifier, size int) *Async {
	if size <= 0 {
		size = DefaultQueueSize
	}
	a := &Async{
		next:  next,
		queue: make(chan string, size),
		done:  make(chan struct{}),
	}
	go a.loop()
	return a
}

func (a *Async) loop() {
	defer close(a.done)

	ctx, logger := log.WithCtx(context.Background())
	logger.PushPrefix("Notify")

	for msg := range a.queue {
		if err := a.next.Send(ctx, msg); err != nil {
			logger.Error(fmt.Sprintf("发送通知失败: %v", err))
		}
	}
}

// Notify 入队，返回是否成功入队
func (a *Async) Notify(ctx context.Context, msg string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return false
	}
	select {
	case a.queue <- msg:
		return true
	default:
		a.dropped++
		_, logger := log.WithCtx(ctx)
		logger.PushPrefix("Notify")
		logger.Info(fmt.Sprintf("警告: 通知队列已满，丢弃消息 (累计丢弃 %d)", a.dropped))
		return false
	}
}

// Send 实现 Notifier，总是返回nil
func (a *Async) Send(ctx context.Context, msg string) error {
	a.Notify(ctx, msg)
	return nil
}

// Dropped 因队列满丢弃的消息数
func (a *Async) Dropped() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.dropped
}

// Close 停止接收并等待队列中的消息发完
func (a *Async) Close() {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}
	a.closed = true
	close(a.queue)
	a.mu.Unlock()

	<-a.done
}
