package handlers

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewAsyncReader(t *testing.T) {
	ch := make(chan int, 3)
	reader := NewAsyncReader(ch)

	// write some values
	ch <- 1
	ch <- 2
	ch <- 3
	close(ch)

	values := reader.Read()

	assert.Equal(t, []int{1, 2, 3}, values, "The values read from the channel should match the expected values")
	assert.NoError(t, reader.Err())
}

func TestAsyncReader_Read2(t *testing.T) {
	ch := make(chan int, 3)

	reader := NewAsyncReader(ch)
	time.Sleep(100 * time.Millisecond) // let the goroutine block on the empty channel

	ch <- 4
	ch <- 5
	ch <- 6
	close(ch)

	read1 := reader.Read()
	assert.Equal(t, []int{4, 5, 6}, read1, "The values read from the channel should match the expected values")

	read2 := reader.Read()
	assert.Equal(t, []int{4, 5, 6}, read2, "Reading twice should return the same values")
}

func TestStreamReader_KeepsFirstError(t *testing.T) {
	ch := make(chan string, 1)
	errs := make(chan error, 2)

	first := errors.New("first")
	ch <- "value"
	close(ch)
	errs <- first
	errs <- errors.New("second")
	close(errs)

	reader := NewStreamReader(ch, errs)

	assert.Equal(t, []string{"value"}, reader.Read())
	assert.Same(t, first, reader.Err())
}
