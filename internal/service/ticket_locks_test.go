package service

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"claimflow/internal/domain"
)

func TestTicketLocks_SerializesOneTicket(t *testing.T) {
	locks := newTicketLocks()
	counter := 0

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := locks.lock("acme", "CLM000001")
			defer unlock()
			v := counter
			counter = v + 1
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, counter)
	assert.Equal(t, 0, locks.size())
}

func TestTicketLocks_IndependentTickets(t *testing.T) {
	locks := newTicketLocks()

	unlockA := locks.lock("acme", "CLM000001")
	unlockB := locks.lock("acme", "CLM000002")
	unlockOther := locks.lock("globex", "CLM000001")
	assert.Equal(t, 3, locks.size())

	unlockA()
	unlockB()
	unlockOther()
	assert.Equal(t, 0, locks.size())
}

func TestEscalate(t *testing.T) {
	assert.Nil(t, escalate(nil))

	var se *domain.StageError
	err := escalate(domain.MissingConfig("agent x"))
	assert.ErrorAs(t, err, &se)
	assert.Equal(t, CodeConfigurationMissing, se.Code)

	err = escalate(&domain.StorageError{Op: "put", Key: "k", Err: errors.New("disk full")})
	assert.ErrorAs(t, err, &se)
	assert.Equal(t, CodeStorageFailed, se.Code)

	plain := errors.New("boom")
	assert.Same(t, plain, escalate(plain))

	own := &domain.StageError{Code: "fhirAnalyserFailed"}
	assert.Same(t, own, escalate(own))
}
