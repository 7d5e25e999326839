// Package client is the Go SDK for the custom domains service.
//
// Attach a domain to the site owned by the bearer of token:
//
//	c, err := client.New("https://domains.example.com", client.WithBearerToken(token))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	res, err := c.AddDomain(ctx, "shop.example.com")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println("publish", res.Domain.OwnershipName, "=", res.Domain.OwnershipValue)
//
// AddDomain is safe to retry: the service converges repeated calls for the
// same domain onto a single record. A non-empty AddResult.Warning means the
// provisioning provider could not be reached; the records may be incomplete
// and a later retry will refresh them.
package client
