package service

import (
	"testing"

	"backoffice_web/internal/models"
)

func newTestClient(userID uint, name string) *Client {
	return NewClient(nil, &Identity{
		UserID:      userID,
		Username:    name,
		Name:        name,
		Role:        models.RoleUser,
		Permissions: models.PermissionSet{models.PermMessageCreate},
	})
}

// drain 取出客戶端通道中累積的全部事件
func drain(c *Client) []OutboundEvent {
	var events []OutboundEvent
	for {
		select {
		case ev := <-c.SendChan:
			events = append(events, ev)
		default:
			return events
		}
	}
}

func TestRoomKeys(t *testing.T) {
	if got := UserRoom(7); got != "user:7" {
		t.Errorf("UserRoom(7) = %q", got)
	}
	if got := ConversationRoom(42); got != "conversation:42" {
		t.Errorf("ConversationRoom(42) = %q", got)
	}
}

func TestRoomManagerJoinLeave(t *testing.T) {
	m := NewRoomManager()
	a := newTestClient(1, "a")
	b := newTestClient(2, "b")

	m.Join("conversation:1", a)
	m.Join("conversation:1", b)

	if !m.IsMember("conversation:1", a) || !m.IsMember("conversation:1", b) {
		t.Fatal("expected both clients to be members")
	}
	if got := m.Count("conversation:1"); got != 2 {
		t.Fatalf("Count = %d, want 2", got)
	}

	m.Leave("conversation:1", a)
	if m.IsMember("conversation:1", a) {
		t.Error("a should have left the room")
	}

	// 重複離開是冪等的 no-op
	m.Leave("conversation:1", a)
	m.Leave("conversation:99", a)

	// 房間清空後索引項被移除
	m.Leave("conversation:1", b)
	if got := m.Count("conversation:1"); got != 0 {
		t.Errorf("Count after empty = %d, want 0", got)
	}
	m.mu.RLock()
	_, exists := m.rooms["conversation:1"]
	m.mu.RUnlock()
	if exists {
		t.Error("empty room should be removed from the index")
	}
}

func TestRoomManagerLeaveAll(t *testing.T) {
	m := NewRoomManager()
	a := newTestClient(1, "a")

	m.Join(UserRoom(1), a)
	m.Join("conversation:1", a)
	m.Join("conversation:2", a)

	m.LeaveAll(a)

	for _, room := range []string{UserRoom(1), "conversation:1", "conversation:2"} {
		if m.IsMember(room, a) {
			t.Errorf("client still member of %s after LeaveAll", room)
		}
	}
}

func TestRoomManagerBroadcast(t *testing.T) {
	m := NewRoomManager()
	a := newTestClient(1, "a")
	b := newTestClient(2, "b")
	outside := newTestClient(3, "c")

	m.Join("conversation:1", a)
	m.Join("conversation:1", b)
	m.Join("conversation:2", outside)

	m.Broadcast("conversation:1", OutboundEvent{Event: EventNewMessage})

	if got := len(drain(a)); got != 1 {
		t.Errorf("a received %d events, want 1", got)
	}
	if got := len(drain(b)); got != 1 {
		t.Errorf("b received %d events, want 1", got)
	}
	if got := len(drain(outside)); got != 0 {
		t.Errorf("outside received %d events, want 0", got)
	}
}

func TestRoomManagerBroadcastExcept(t *testing.T) {
	m := NewRoomManager()
	sender := newTestClient(1, "a")
	other := newTestClient(2, "b")

	m.Join("conversation:1", sender)
	m.Join("conversation:1", other)

	m.BroadcastExcept("conversation:1", sender, OutboundEvent{Event: EventUserTyping})

	if got := len(drain(sender)); got != 0 {
		t.Errorf("sender received %d events, want 0", got)
	}
	if got := len(drain(other)); got != 1 {
		t.Errorf("other received %d events, want 1", got)
	}
}

// 廣播快照成員後才逐一送出，期間任何一條連線都可能完成斷線
// 清理。往已關閉連線的發送必須被丟棄，而不是讓進程崩潰。
func TestBroadcastRacingDisconnectDoesNotPanic(t *testing.T) {
	m := NewRoomManager()

	const rounds = 50
	const clientsPerRound = 200

	for i := 0; i < rounds; i++ {
		clients := make([]*Client, clientsPerRound)
		for j := range clients {
			c := newTestClient(uint(j+1), "user")
			m.Join("conversation:1", c)
			clients[j] = c
		}

		done := make(chan struct{})
		go func() {
			for k := 0; k < 20; k++ {
				m.Broadcast("conversation:1", OutboundEvent{Event: EventNewMessage})
			}
			close(done)
		}()

		// 模擬斷線清理：移出所有房間後關閉發送通道
		for _, c := range clients {
			m.LeaveAll(c)
			c.close()
		}
		<-done
	}
}

func TestTrySendAfterCloseDropsEvent(t *testing.T) {
	c := newTestClient(1, "a")
	c.close()

	// 已關閉的連線丟棄事件而非 panic，也不觸發慢消費者淘汰
	if !c.trySend(OutboundEvent{Event: EventNewMessage}) {
		t.Error("trySend on a closed client should report success to avoid eviction churn")
	}

	// 重複關閉是 no-op
	c.close()
}

func TestNewClientAssignsUniqueID(t *testing.T) {
	a := newTestClient(1, "a")
	b := newTestClient(2, "b")

	if a.ID == "" || b.ID == "" {
		t.Fatal("connection id must be assigned")
	}
	if a.ID == b.ID {
		t.Errorf("connection ids must be unique, both are %q", a.ID)
	}
}

func TestRoomManagerEvictsSlowConsumer(t *testing.T) {
	m := NewRoomManager()
	slow := newTestClient(1, "slow")
	m.Join("conversation:1", slow)

	// 塞滿發送通道
	for i := 0; i < cap(slow.SendChan); i++ {
		slow.SendChan <- OutboundEvent{Event: EventNewMessage}
	}

	m.Broadcast("conversation:1", OutboundEvent{Event: EventNewMessage})

	if m.IsMember("conversation:1", slow) {
		t.Error("slow consumer should be evicted from the room")
	}
}
