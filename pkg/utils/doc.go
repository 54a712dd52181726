// Package utils holds small helpers shared by the client and the fake
// connector, chiefly panic recovery for background goroutines and timers.
package utils
