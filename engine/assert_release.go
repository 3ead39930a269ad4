//go:build !samplerdebug

package engine

const debugAssertions = false
