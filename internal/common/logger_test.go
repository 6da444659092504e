package common

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLogger_RingBuffer(t *testing.T) {
	l := NewLogger("")

	for i := 0; i < 150; i++ {
		l.Info("메시지 %d", i)
	}

	logs := l.Logs()
	assert.Len(t, logs, maxLogEntries)
	// 最新的在前
	assert.Equal(t, "메시지 149", logs[0].Message)
	assert.Equal(t, "메시지 50", logs[len(logs)-1].Message)
}

func TestLogger_Levels(t *testing.T) {
	l := NewLogger("")
	l.Info("정보")
	l.Warn("경고")
	l.Error("오류")
	l.Success("성공")

	logs := l.Logs()
	assert.Len(t, logs, 4)
	assert.Equal(t, LevelSuccess, logs[0].Level)
	assert.Equal(t, LevelError, logs[1].Level)
	assert.Equal(t, LevelWarn, logs[2].Level)
	assert.Equal(t, LevelInfo, logs[3].Level)
}

func TestLogger_ErrorWith(t *testing.T) {
	l := NewLogger("")
	l.ErrorWith("저장 실패", errors.New("connection refused"))

	logs := l.Logs()
	assert.Equal(t, "저장 실패", logs[0].Message)
	assert.Equal(t, "connection refused", logs[0].Details)
}

func TestLogger_Recent(t *testing.T) {
	l := NewLogger("")
	for i := 0; i < 10; i++ {
		l.Info("항목 %d", i)
	}

	recent := l.Recent(3)
	assert.Len(t, recent, 3)
	assert.Equal(t, "항목 9", recent[0].Message)

	// n 이 버퍼보다 커도 안전
	assert.Len(t, l.Recent(100), 10)
}

func TestLogger_Subscribe(t *testing.T) {
	l := NewLogger("")

	var notified int
	cancel := l.Subscribe(func(entries []LogEntry) {
		notified++
	})

	l.Info("하나")
	l.Info("둘")
	assert.Equal(t, 2, notified)

	cancel()
	l.Info("셋")
	assert.Equal(t, 2, notified, "구독 취소 후에는 알림 없음")
}

func TestLogger_MultipleSubscribers(t *testing.T) {
	l := NewLogger("")

	var first, second [][]LogEntry
	l.Subscribe(func(entries []LogEntry) { first = append(first, entries) })
	l.Subscribe(func(entries []LogEntry) { second = append(second, entries) })

	l.Info("방송")
	assert.Len(t, first, 1)
	assert.Len(t, second, 1)
	assert.Equal(t, "방송", first[0][0].Message)

	// Clear 也会广播 (空快照)
	l.Clear()
	assert.Len(t, first, 2)
	assert.Nil(t, first[1])
	assert.Len(t, second, 2)
}

func TestLogger_Clear(t *testing.T) {
	l := NewLogger("")
	l.Info("지워질 메시지")
	l.Clear()
	assert.Empty(t, l.Logs())
}

func TestLogger_Timestamp(t *testing.T) {
	l := NewLogger("")
	fixed := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	l.nowFunc = func() time.Time { return fixed }

	l.Info("시간 확인")
	assert.Equal(t, "2025-06-01T12:00:00Z", l.Logs()[0].Timestamp)
}

func ExampleLogger() {
	l := NewLogger("")
	l.Info("예시 %s", "메시지")
	fmt.Println(l.Logs()[0].Message)
	// Output: 예시 메시지
}
