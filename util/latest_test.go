package util

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPulse_CollapsesFires(t *testing.T) {
	p := NewPulse()
	assert.False(t, p.Pending(), "new pulse should not be pending")

	p.Fire()
	p.Fire()
	p.Fire()
	assert.True(t, p.Pending())

	select {
	case <-p.C():
		// Good, got notification
	default:
		t.Fatal("should have received a notification")
	}

	// Three fires, one notification
	select {
	case <-p.C():
		t.Fatal("channel should be empty")
	default:
	}
}

func TestPulse_Drain(t *testing.T) {
	p := NewPulse()
	assert.False(t, p.Drain(), "nothing to drain")
	p.Fire()
	assert.True(t, p.Drain())
	assert.False(t, p.Pending())
}

func TestLatest_SendAndValue(t *testing.T) {
	l := NewLatest[string]()
	l.Send("event1")
	l.Send("event2")

	select {
	case <-l.Channel():
	default:
		t.Fatal("should have received a notification")
	}
	assert.Equal(t, "event2", l.Value(), "Value should be the last value sent")
}

func TestLatest_Concurrency(t *testing.T) {
	l := NewLatest[int]()
	done := make(chan struct{})

	go func() {
		for i := 0; i < 1000; i++ {
			l.Send(i)
		}
		close(done)
	}()

	lastRead := -1
	var readerWg sync.WaitGroup
	readerWg.Add(1)
	go func() {
		defer readerWg.Done()
		for {
			select {
			case <-l.Channel():
				val := l.Value()
				if val < lastRead {
					t.Errorf("read a stale value: got %d, last was %d", val, lastRead)
				}
				lastRead = val
			case <-done:
				return
			}
		}
	}()
	readerWg.Wait()

	assert.Equal(t, 999, l.Value(), "Final value should be 999")
}

func TestLatestMap_SendAndConsumeValues(t *testing.T) {
	l := NewLatestMap[int]()

	l.Send("one", 1)
	l.Send("two", 2)
	l.Send("one", 11)

	assert.True(t, l.HasPending(), "should have pending notification")

	values := l.ConsumeValues()
	assert.Len(t, values, 2)
	assert.Equal(t, 11, values["one"])
	assert.Equal(t, 2, values["two"])

	assert.False(t, l.HasPending(), "should not have pending notification after consume")
	assert.Len(t, l.ConsumeValues(), 0, "should have zero values after consuming")
}

func TestLatestMap_Concurrency(t *testing.T) {
	l := NewLatestMap[int]()
	var wg sync.WaitGroup
	const numGoroutines = 10
	const numWritesPerGoRoutine = 100

	wg.Add(numGoroutines)
	for i := 0; i < numGoroutines; i++ {
		go func(goroutineID int) {
			defer wg.Done()
			for j := 0; j < numWritesPerGoRoutine; j++ {
				l.Send(fmt.Sprintf("g%d-k%d", goroutineID, j), j)
			}
		}(i)
	}
	wg.Wait()

	<-l.Channel()
	assert.Len(t, l.ConsumeValues(), numGoroutines*numWritesPerGoRoutine)
}

func TestClamp(t *testing.T) {
	assert.Equal(t, -50.0, Clamp(-80.0, -50.0, -10.0))
	assert.Equal(t, -10.0, Clamp(3.0, -50.0, -10.0))
	assert.Equal(t, -30.0, Clamp(-30.0, -50.0, -10.0))
	assert.Equal(t, 255, Clamp(300, 0, 255))
	assert.True(t, InRange(0, 0, 255))
	assert.False(t, InRange(256, 0, 255))
}
