// Package model holds the schedule, catalog and settings types shared by
// the scheduler core and its adapters.
package model
