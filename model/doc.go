// Package model tells NumWorks calculator models apart from what they expose over DFU.
package model
