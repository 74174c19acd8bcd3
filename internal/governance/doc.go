// Package governance provides typed access to a deployed governance instance:
// the governance and vote strategy interfaces at the instance address, the
// storage program holding proposal data, and the System factory that creates a
// complete collective in a single send.
package governance
