// Package dedupe tracks recently seen push frame keys so a duplicate
// delivery within the window is absorbed before it reaches any consumer.
package dedupe
