// Package testsupport provides shared constructors for tests.
package testsupport
