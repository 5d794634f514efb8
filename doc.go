/*
Package ddns keeps a DNS record pointed at a dynamically assigned address.

Usage will always start with [ddns.New],
which returns a [Reconciler] for one domain and subdomain.
New requires a [Provider] option such as [UsingDNSPod];
additional options are listed in the docs for New.

Each reconciliation cycle discovers the current address with a [Resolver],
reads the record from the provider, and modifies the record only when the two differ.
[Reconciler.Run] repeats the cycle on an interval and [Reconciler.RunDDNS] runs it once.
Failures are returned as [*Error] values whose [Kind] decides whether they are retried.
*/
package ddns
