// Package model defines the shared data types mirrored from the research backend.
//
// Conventions:
//   - Prices and monetary values: float64 dollars, backend is source of truth
//   - Timestamps: time.Time in UTC
//   - IDs: string symbols for market data, uuid strings for jobs/notifications
//
// Derived position fields (Value, Gain, GainPercent) are always computed from
// Quantity, AverageCost and CurrentPrice, never stored independently.
package model
