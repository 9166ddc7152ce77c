package braintree

const mutationClientToken = `mutation ClientToken {
  createClientToken {
    clientToken
  }
}`

const transactionFields = `transaction {
      id
      status
      amount { value currencyCode }
      processorResponse { legacyCode message }
    }`

const mutationCharge = `mutation Charge($input: ChargePaymentMethodInput!) {
  chargePaymentMethod(input: $input) {
    ` + transactionFields + `
  }
}`

const mutationAuthorize = `mutation Authorize($input: AuthorizePaymentMethodInput!) {
  authorizePaymentMethod(input: $input) {
    ` + transactionFields + `
  }
}`
