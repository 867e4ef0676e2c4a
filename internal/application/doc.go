// Package application provides application initialization and dependency
// wiring. It encapsulates the creation of the store, calculation engine,
// portal client, notifier, and scheduler, making the main package cleaner
// and more focused on CLI parsing and orchestration.
package application
