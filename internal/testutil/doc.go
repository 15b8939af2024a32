// Package testutil provides scenario builders shared by package tests.
package testutil
