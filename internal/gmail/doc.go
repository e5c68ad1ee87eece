// Package gmail reads the inbox through the Gmail API and implements
// mailbox.Source.
//
// Only unread inbox messages are listed, at most MaxMessages per call.
// Attachments are saved under a per-message directory so files with the same
// name from different emails never overwrite each other. Only extensions in
// the allow list are downloaded.
//
// Example usage:
//
//	httpClient, err := google.HTTPClient(ctx, google.Config{ClientID: id, ClientSecret: secret})
//	if err != nil {
//	    return err
//	}
//	client, err := gmail.NewClient(ctx, gmail.Config{}, option.WithHTTPClient(httpClient))
//	if err != nil {
//	    return err
//	}
//	msgs, err := client.ListUnread(ctx)
package gmail
