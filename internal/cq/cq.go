// Package cq implements a concurrent queue that hands out everything
// added to it since the last read as one batch.
package cq

import (
	"errors"

	"deedles.dev/xsync"
)

// Flush runs each event in order and returns the errors they produced.
func Flush(queue []func() error) (errs []error) {
	for _, ev := range queue {
		err := ev()
		if err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

// FlushJoined is Flush with the errors joined into one.
func FlushJoined(queue []func() error) error {
	return errors.Join(Flush(queue)...)
}

// Queue collects values sent from any goroutine. Receiving from Get
// yields every value added since the previous receive, in order.
type Queue[T any] struct {
	stop xsync.Stopper

	add chan T
	get chan []T
}

func New[T any]() *Queue[T] {
	q := Queue[T]{
		add: make(chan T),
		get: make(chan []T),
	}
	go q.run()

	return &q
}

// Stop stops the queue. Values that have not been received are
// dropped. It is safe to call more than once.
func (q *Queue[T]) Stop() {
	q.stop.Stop()
}

// Done is closed once the queue is stopped. Sends to Add block
// forever after that, so senders should select on it.
func (q *Queue[T]) Done() <-chan struct{} {
	return q.stop.Done()
}

func (q *Queue[T]) Add() chan<- T {
	return q.add
}

func (q *Queue[T]) Get() <-chan []T {
	return q.get
}

func (q *Queue[T]) run() {
	var s []T
	var get chan []T

	done := q.stop.Done()
	for {
		select {
		case <-done:
			return

		case v := <-q.add:
			s = append(s, v)
			get = q.get

		case get <- s:
			s = nil
			get = nil
		}
	}
}
