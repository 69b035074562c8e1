/*
Package ddns keeps a Cloudflare A record pointed at the public IP address of a home network.

Usage will always start with [ddns.New],
which returns a [Client] for one domain.
New requires a domain name which will be updated and a [Provider] implementation for a DNS provider,
normally installed with [UsingCloudflare].
The public IP is discovered by asking the internet gateway over UPnP (see [UPnPResolver]);
any other [Resolver] can be supplied with [UsingResolver].

[Client.Run] reconciles on a fixed interval until its context is done.
The record read from the provider is cached between cycles,
so a steady state costs one request to the gateway and none to the provider.
Any failure discards the cache and the next cycle starts over with a lookup.
*/
package ddns
