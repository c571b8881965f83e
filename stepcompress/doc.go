// Package stepcompress compresses a host-scheduled sequence of stepper
// pulse clocks into a minimal sequence of (interval, count, add) move
// triplets an MCU's queue_step primitive can execute, and synchronizes the
// resulting commands across steppers against a shared, finite MCU move
// queue.
package stepcompress
