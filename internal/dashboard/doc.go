// Package dashboard summarises the admin lists into headline counts.
package dashboard
